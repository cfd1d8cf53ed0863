package routes_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/avvvet/bingo-rooms/internal/socketsvc/broker"
	"github.com/avvvet/bingo-rooms/internal/socketsvc/routes"
	"github.com/avvvet/bingo-rooms/internal/socketsvc/ws"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t      *testing.T
	url    string
	token  string
	broker *broker.Broker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tokenAuth := jwtauth.New("HS256", []byte("socket-secret"), nil)
	_, token, err := tokenAuth.Encode(map[string]interface{}{"sub": "9"})
	require.NoError(t, err)

	s := ws.NewWs()
	r := chi.NewRouter()
	routes.SetRoutes(r, s, tokenAuth, "8081")
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &harness{
		t:      t,
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws",
		token:  token,
		broker: broker.NewBroker(nil, s.DeliverToRoom),
	}
}

func (h *harness) dial() *websocket.Conn {
	h.t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.url+"?jwt="+h.token, nil)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(comm.WSMessage{Type: eventType, Data: data}))
}

func read(t *testing.T, conn *websocket.Conn) comm.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var m comm.WSMessage
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func text(t *testing.T, m comm.WSMessage) string {
	t.Helper()
	var payload comm.RoomMessage
	require.NoError(t, json.Unmarshal(m.Data, &payload))
	return payload.Text
}

func TestWebSocketRequiresToken(t *testing.T) {
	h := newHarness(t)
	_, res, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRoomFanOut(t *testing.T) {
	h := newHarness(t)
	alice, bob, carol := h.dial(), h.dial(), h.dial()

	send(t, alice, comm.EventRoomJoin, comm.RoomJoin{RoomCode: "cake1", Nickname: "alice"})
	m := read(t, alice)
	assert.Equal(t, comm.EventRoomMessage, m.Type)
	assert.Equal(t, "CAKE1", m.RoomCode)
	assert.Equal(t, "alice joined", text(t, m))

	send(t, bob, comm.EventRoomJoin, comm.RoomJoin{RoomCode: "CAKE1", Nickname: "bob"})
	assert.Equal(t, "bob joined", text(t, read(t, alice)))
	assert.Equal(t, "bob joined", text(t, read(t, bob)))

	send(t, carol, comm.EventRoomJoin, comm.RoomJoin{RoomCode: "OTHER", Nickname: "carol"})
	assert.Equal(t, "carol joined", text(t, read(t, carol)))

	event := comm.RoomEvent{
		Type:     comm.EventDraw,
		RoomCode: "CAKE1",
		At:       time.Now().UTC(),
		Payload:  comm.DrawData{Number: 42, Count: 1},
	}
	envelope, err := event.Envelope()
	require.NoError(t, err)
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	h.broker.Dispatch(raw)

	for _, conn := range []*websocket.Conn{alice, bob} {
		m := read(t, conn)
		assert.Equal(t, comm.EventDraw, m.Type)
		var got struct {
			Payload comm.DrawData `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(m.Data, &got))
		assert.Equal(t, 42, got.Payload.Number)
	}

	send(t, bob, comm.EventRoomMessage, comm.RoomMessage{Text: "nearly there"})
	assert.Equal(t, "nearly there", text(t, read(t, alice)))
	assert.Equal(t, "nearly there", text(t, read(t, bob)))

	// carol only sees her own room
	send(t, carol, comm.EventRoomMessage, comm.RoomMessage{Text: "hello?"})
	assert.Equal(t, "hello?", text(t, read(t, carol)))
}

func TestSocketErrors(t *testing.T) {
	h := newHarness(t)
	conn := h.dial()

	send(t, conn, comm.EventRoomMessage, comm.RoomMessage{Text: "too early"})
	m := read(t, conn)
	assert.Equal(t, comm.EventError, m.Type)
	assert.Contains(t, string(m.Data), "join a room first")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))
	m = read(t, conn)
	assert.Equal(t, comm.EventError, m.Type)

	send(t, conn, "offer", map[string]string{})
	m = read(t, conn)
	assert.Equal(t, comm.EventError, m.Type)
}
