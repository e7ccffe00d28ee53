package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/checkin-services/internal/checkinsvc/models"
	"github.com/avvvet/checkin-services/internal/comm"
)

const CheckinCreatedTopic = "checkin.created"

// Broker announces stored check-ins on NATS so every service instance can
// push them to its connected dashboards.
type Broker struct {
	Conn     *nats.Conn
	instance string
	schema   string
}

func NewBroker(nc *nats.Conn, instance, schema string) *Broker {
	return &Broker{
		Conn:     nc,
		instance: instance,
		schema:   schema,
	}
}

// CheckinCreated publishes the record. It satisfies service.Notifier.
func (b *Broker) CheckinCreated(ctx context.Context, r models.Record) error {
	payload, err := json.Marshal(comm.NewCheckinEvent(b.instance, b.schema, r))
	if err != nil {
		return fmt.Errorf("marshal check-in event: %w", err)
	}
	return b.Publish(CheckinCreatedTopic, payload)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// SubscribeCheckins delivers every check-in event, including this
// instance's own, to handle.
func (b *Broker) SubscribeCheckins(handle func(comm.CheckinEvent)) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(CheckinCreatedTopic, func(msg *nats.Msg) {
		ev, err := DecodeEvent(msg.Data)
		if err != nil {
			log.Errorf("Error decoding check-in event: %s", err)
			return
		}
		handle(ev)
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func DecodeEvent(data []byte) (comm.CheckinEvent, error) {
	var ev comm.CheckinEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return comm.CheckinEvent{}, err
	}
	if ev.ID == "" {
		return comm.CheckinEvent{}, fmt.Errorf("check-in event without id")
	}
	return ev, nil
}
