package broker

import (
	"encoding/json"

	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type Broker struct {
	Conn          *nats.Conn
	DeliverToRoom func(*comm.WSMessage)
}

func NewBroker(conn *nats.Conn, fncDeliverToRoom func(*comm.WSMessage)) *Broker {
	return &Broker{
		Conn:          conn,
		DeliverToRoom: fncDeliverToRoom,
	}
}

// consume room events from the room service and peer socket services
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

func (b *Broker) handleMessages(msgNats *nats.Msg) {
	b.Dispatch(msgNats.Data)
}

// Dispatch routes one raw room event to the sockets of its room.
func (b *Broker) Dispatch(data []byte) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(data, message); err != nil {
		log.Errorf("Error decoding room event: %s", err)
		return
	}

	if message.RoomCode == "" {
		log.Warnf("room event %s without room code dropped", message.Type)
		return
	}

	switch message.Type {
	case comm.EventDraw, comm.EventRoomRunning, comm.EventRoomFinished, comm.EventPlayerJoined, comm.EventRoomMessage:
		b.DeliverToRoom(message)
	default:
		log.Warnf("Unknown room event %s", message.Type)
	}
}
