package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
	"github.com/avvvet/checkin-services/internal/comm"
)

const (
	writeWait = 10 * time.Second
	sendQueue = 16 // messages a dashboard may fall behind before it is dropped
)

type client struct {
	conn *websocket.Conn
	send chan comm.WSMessage
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan comm.WSMessage, sendQueue),
		done: make(chan struct{}),
	}
}

// enqueue never blocks; false means the dashboard is not keeping up or is
// already gone.
func (c *client) enqueue(m comm.WSMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- m:
		return true
	default:
		return false
	}
}

func (c *client) stop() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Ws tracks the dashboards watching the live check-in feed.
type Ws struct {
	connMap  sync.Map // socketId -> *client
	upgrader websocket.Upgrader
	instance string
	schema   string
}

func NewWs(instance, schema string) *Ws {
	return &Ws{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		instance: instance,
		schema:   schema,
	}
}

// HandleWebSocket upgrades the request and keeps the socket registered until
// the browser goes away.
func (s *Ws) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	socketId := uuid.New().String()
	c := newClient(conn)
	s.connMap.Store(socketId, c)
	log.Infof("New WebSocket connection established: %s", socketId)

	c.enqueue(comm.WSMessage{Type: "hello", SocketId: socketId})

	go s.writeLoop(c, socketId)
	go s.handleConnection(c, socketId)
}

// writeLoop is the only writer of data frames on the socket.
func (s *Ws) writeLoop(c *client, socketId string) {
	for {
		select {
		case m := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(m); err != nil {
				log.Warnf("dropping socket %s: %v", socketId, err)
				s.drop(socketId, c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// handleConnection drains client frames; the feed is one-way, reading only
// notices the close.
func (s *Ws) handleConnection(c *client, socketId string) {
	defer func() {
		log.Infof("Closing WebSocket connection: %s", socketId)
		s.drop(socketId, c)
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", socketId, err)
			}
			return
		}
	}
}

func (s *Ws) drop(socketId any, c *client) {
	s.connMap.Delete(socketId)
	c.stop()
}

// Broadcast queues the event for every connected dashboard and returns
// without waiting on any socket. A dashboard whose queue is full is dropped.
func (s *Ws) Broadcast(ev comm.CheckinEvent) {
	msg, err := ev.Message()
	if err != nil {
		log.Errorf("Failed to encode check-in event: %v", err)
		return
	}

	s.connMap.Range(func(key, value any) bool {
		c := value.(*client)
		if !c.enqueue(msg) {
			log.Warnf("dropping socket %s: send queue full", key)
			s.drop(key, c)
		}
		return true
	})
}

// CheckinCreated broadcasts directly; used when no NATS bus is configured.
func (s *Ws) CheckinCreated(ctx context.Context, r models.Record) error {
	s.Broadcast(comm.NewCheckinEvent(s.instance, s.schema, r))
	return nil
}

func (s *Ws) Count() int {
	n := 0
	s.connMap.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close disconnects every dashboard.
func (s *Ws) Close() {
	s.connMap.Range(func(key, value any) bool {
		c := value.(*client)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		s.drop(key, c)
		return true
	})
}
