package comm

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
)

// WSMessage is what dashboards receive on the live feed.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "checkin", "hello"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
}

// CheckinEvent is published on the bus after a row has been appended.
type CheckinEvent struct {
	ID        string        `json:"id"`
	Instance  string        `json:"instance"` // service instance that stored the row
	Schema    string        `json:"schema"`
	Record    models.Record `json:"record"`
	CreatedAt time.Time     `json:"created_at"`
}

func NewCheckinEvent(instance, schema string, r models.Record) CheckinEvent {
	return CheckinEvent{
		ID:        uuid.New().String(),
		Instance:  instance,
		Schema:    schema,
		Record:    r,
		CreatedAt: time.Now().UTC(),
	}
}

// Message wraps the event for the websocket feed.
func (e CheckinEvent) Message() (WSMessage, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return WSMessage{}, err
	}
	return WSMessage{Type: "checkin", Data: data}, nil
}
