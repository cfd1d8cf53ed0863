package ws

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// client serializes writes; gorilla connections allow one concurrent writer.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Ws struct {
	connMap sync.Map // socketId -> *client
	roomMap sync.Map // socketId -> room code

	// Publish sends a message to every socket service instance. When nil,
	// messages are delivered to local sockets only.
	Publish func(topic string, payload []byte) error
}

func NewWs() *Ws {
	return &Ws{}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case comm.EventRoomJoin:
		s.handleJoin(socketId, message)
	case comm.EventRoomMessage:
		s.handleRoomMessage(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
		s.SendError(socketId, "unknown event "+message.Type)
	}
}

func (s *Ws) handleJoin(socketId string, msg *comm.WSMessage) {
	var payload comm.RoomJoin
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: invalid room:join payload %s", err)
		s.SendError(socketId, "invalid room:join payload")
		return
	}

	code := strings.ToUpper(strings.TrimSpace(payload.RoomCode))
	if code == "" {
		s.SendError(socketId, "roomCode is required")
		return
	}
	s.StoreRoom(socketId, code)

	nickname := strings.TrimSpace(payload.Nickname)
	if nickname == "" {
		nickname = "someone"
	}
	log.Infof("socket %s observing room %s", socketId, code)

	s.broadcast(code, comm.RoomMessage{Text: nickname + " joined"})
}

func (s *Ws) handleRoomMessage(socketId string, msg *comm.WSMessage) {
	code, ok := s.GetRoom(socketId)
	if !ok {
		s.SendError(socketId, "join a room first")
		return
	}

	var payload comm.RoomMessage
	if err := json.Unmarshal(msg.Data, &payload); err != nil || strings.TrimSpace(payload.Text) == "" {
		s.SendError(socketId, "invalid room:message payload")
		return
	}

	s.broadcast(code, payload)
}

func (s *Ws) broadcast(code string, payload comm.RoomMessage) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("Failed to marshal room message: %v", err)
		return
	}
	m := &comm.WSMessage{Type: comm.EventRoomMessage, Data: data, RoomCode: code}

	if s.Publish == nil {
		s.DeliverToRoom(m)
		return
	}

	bytes, err := json.Marshal(m)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}
	if err := s.Publish(comm.RoomEventsSubject, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", comm.RoomEventsSubject, err)
	}
}

// DeliverToRoom writes m to every local socket observing m.RoomCode.
func (s *Ws) DeliverToRoom(m *comm.WSMessage) {
	sockets, ok := s.GetRoomSockets(m.RoomCode)
	if !ok {
		return
	}
	for _, socketId := range sockets {
		c, ok := s.getClient(socketId)
		if !ok {
			continue
		}
		if err := c.write(m); err != nil {
			log.Warnf("write to socket %s: %v", socketId, err)
		}
	}
}

func (s *Ws) SendError(socketId, errorMsg string) {
	c, ok := s.getClient(socketId)
	if !ok {
		return
	}
	data, _ := json.Marshal(map[string]string{"error": errorMsg})
	if err := c.write(&comm.WSMessage{Type: comm.EventError, Data: data}); err != nil {
		log.Errorf("Failed to send error message to client: %v", err)
	}
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &client{conn: conn})
}

func (s *Ws) getClient(socketId string) (*client, bool) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return c.(*client), true
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
	s.roomMap.Delete(socketId)
}

func (s *Ws) StoreRoom(socketId string, roomCode string) {
	s.roomMap.Store(socketId, roomCode)
}

func (s *Ws) GetRoom(socketId string) (string, bool) {
	room, ok := s.roomMap.Load(socketId)
	if !ok {
		return "", false
	}
	return room.(string), true
}

func (s *Ws) GetRoomSockets(roomCode string) ([]string, bool) {
	var sockets []string
	found := false

	s.roomMap.Range(func(key, value interface{}) bool {
		if value.(string) == roomCode {
			sockets = append(sockets, key.(string))
			found = true
		}
		return true // continue iterating
	})

	return sockets, found
}
