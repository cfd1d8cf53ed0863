package caller

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedDrawer struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (d *scriptedDrawer) Draw(_ context.Context, roomCode string) (*models.Draw, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.Draw{Number: d.calls, DrawnAt: time.Now()}, nil
}

func (d *scriptedDrawer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func envelope(t *testing.T, e comm.RoomEvent) []byte {
	t.Helper()
	msg, err := e.Envelope()
	require.NoError(t, err)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestCallerStopsWhenPoolIsExhausted(t *testing.T) {
	d := &scriptedDrawer{errs: []error{nil, nil, nil, bingo.ErrExhausted}}
	c := New(d, 5*time.Millisecond, 1)
	defer c.StopAll()

	require.True(t, c.Start(context.Background(), "abc123"))
	require.Eventually(t, func() bool { return !c.Running("ABC123") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, d.count())
}

func TestCallerKeepsGoingOnTransientErrors(t *testing.T) {
	d := &scriptedDrawer{errs: []error{bingo.ErrStoreFailure, bingo.ErrStoreFailure, nil, bingo.ErrRoomClosed}}
	c := New(d, 5*time.Millisecond, 1)
	defer c.StopAll()

	c.Start(context.Background(), "ROOM01")
	require.Eventually(t, func() bool { return !c.Running("ROOM01") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, d.count())
}

func TestCallerStartIsIdempotent(t *testing.T) {
	c := New(&scriptedDrawer{}, time.Hour, 1)
	defer c.StopAll()

	assert.True(t, c.Start(context.Background(), "ROOM01"))
	assert.False(t, c.Start(context.Background(), "room01"))
	assert.False(t, c.Start(context.Background(), "  "))

	c.Stop("room01")
	assert.False(t, c.Running("ROOM01"))
	assert.True(t, c.Start(context.Background(), "ROOM01"))
}

func TestCallerHandleEvent(t *testing.T) {
	c := New(&scriptedDrawer{}, time.Hour, 2)
	defer c.StopAll()
	ctx := context.Background()

	c.HandleEvent(ctx, envelope(t, comm.RoomEvent{
		Type: comm.EventPlayerJoined, RoomCode: "ROOM01",
		Payload: comm.PlayerJoinedData{UserId: 1, PlayersCount: 1},
	}))
	assert.False(t, c.Running("ROOM01"))

	c.HandleEvent(ctx, envelope(t, comm.RoomEvent{
		Type: comm.EventPlayerJoined, RoomCode: "ROOM01",
		Payload: comm.PlayerJoinedData{UserId: 2, PlayersCount: 2},
	}))
	assert.True(t, c.Running("ROOM01"))

	// draws are ignored
	c.HandleEvent(ctx, envelope(t, comm.RoomEvent{Type: comm.EventDraw, RoomCode: "ROOM01"}))
	assert.True(t, c.Running("ROOM01"))

	c.HandleEvent(ctx, envelope(t, comm.RoomEvent{Type: comm.EventRoomFinished, RoomCode: "ROOM01"}))
	assert.False(t, c.Running("ROOM01"))

	c.HandleEvent(ctx, []byte("not json"))
}
