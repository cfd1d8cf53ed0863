package broker

import (
	"context"
	"encoding/json"

	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Broker publishes room events to NATS for the socket service to relay.
type Broker struct {
	Conn    *nats.Conn
	Subject string
}

func NewBroker(nc *nats.Conn) *Broker {
	return &Broker{Conn: nc, Subject: comm.RoomEventsSubject}
}

// Notify is fire-and-forget: failures are logged, never returned.
func (b *Broker) Notify(ctx context.Context, e comm.RoomEvent) {
	msg, err := e.Envelope()
	if err != nil {
		log.Errorf("error [Broker.Notify] marshaling %s event for room %s: %v", e.Type, e.RoomCode, err)
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("error [Broker.Notify] marshaling WSMessage: %v", err)
		return
	}

	b.Publish(b.Subject, payload)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
