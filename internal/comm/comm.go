package comm

import (
	"encoding/json"
	"time"
)

// Subject every room event is published on.
const RoomEventsSubject = "room.events"

// Event types carried in WSMessage.Type.
const (
	EventDraw         = "draw:new"
	EventRoomRunning  = "room:running"
	EventRoomFinished = "room:finished"
	EventPlayerJoined = "room:player-joined"
	EventRoomMessage  = "room:message"
	EventRoomJoin     = "room:join"
	EventError        = "error"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "draw:new", "room:join"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
	RoomCode string          `json:"room,omitempty"`
}

// RoomEvent is what the room service hands to its notification sink.
type RoomEvent struct {
	Type     string    `json:"type"`
	RoomCode string    `json:"roomCode"`
	At       time.Time `json:"at"`
	Payload  any       `json:"payload,omitempty"`
}

// Envelope wraps e for the wire.
func (e RoomEvent) Envelope() (*WSMessage, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &WSMessage{Type: e.Type, Data: data, RoomCode: e.RoomCode}, nil
}

type DrawData struct {
	Number  int       `json:"number"`
	DrawnAt time.Time `json:"drawnAt"`
	Count   int       `json:"count"`
}

type FinishData struct {
	WinnerUserId *int64 `json:"winnerUserId"`
	Pattern      []int  `json:"pattern,omitempty"`
}

type PlayerJoinedData struct {
	UserId       int64 `json:"userId"`
	PlayersCount int   `json:"playersCount"`
}

type RoomJoin struct {
	RoomCode string `json:"roomCode"`
	Nickname string `json:"nickname"`
}

type RoomMessage struct {
	Text string `json:"text"`
}
