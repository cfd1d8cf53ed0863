// Package caller draws numbers for rooms on a fixed interval so a room can
// run without an admin pressing draw.
package caller

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	log "github.com/sirupsen/logrus"
)

type Drawer interface {
	Draw(ctx context.Context, roomCode string) (*models.Draw, error)
}

type Caller struct {
	rooms      Drawer
	interval   time.Duration
	minPlayers int

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func New(rooms Drawer, interval time.Duration, minPlayers int) *Caller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if minPlayers < 1 {
		minPlayers = 1
	}
	return &Caller{
		rooms:      rooms,
		interval:   interval,
		minPlayers: minPlayers,
		running:    make(map[string]context.CancelFunc),
	}
}

// Start begins calling for roomCode. It returns false when a caller for the
// room is already running.
func (c *Caller) Start(ctx context.Context, roomCode string) bool {
	code := strings.ToUpper(strings.TrimSpace(roomCode))
	if code == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.running[code]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	c.running[code] = cancel
	c.wg.Add(1)
	go c.run(ctx, code)

	log.Infof("caller started for room %s every %s", code, c.interval)
	return true
}

func (c *Caller) Stop(roomCode string) {
	code := strings.ToUpper(strings.TrimSpace(roomCode))
	c.mu.Lock()
	cancel, ok := c.running[code]
	delete(c.running, code)
	c.mu.Unlock()

	if ok {
		cancel()
		log.Infof("caller stopped for room %s", code)
	}
}

func (c *Caller) Running(roomCode string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[strings.ToUpper(strings.TrimSpace(roomCode))]
	return ok
}

// StopAll cancels every caller and waits for them to return.
func (c *Caller) StopAll() {
	c.mu.Lock()
	for code, cancel := range c.running {
		cancel()
		delete(c.running, code)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Caller) run(ctx context.Context, code string) {
	defer c.wg.Done()
	defer c.forget(ctx, code)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		draw, err := c.rooms.Draw(ctx, code)
		switch {
		case err == nil:
			log.Debugf("caller room %s drew %d", code, draw.Number)
		case finalDrawError(err):
			log.Infof("caller done for room %s: %v", code, err)
			return
		case ctx.Err() != nil:
			return
		default:
			log.Errorf("caller draw for room %s: %v", code, err)
		}
	}
}

// forget drops the registry entry unless Stop or a newer Start replaced it.
func (c *Caller) forget(ctx context.Context, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() == nil {
		if cancel, ok := c.running[code]; ok {
			cancel()
			delete(c.running, code)
		}
	}
}

func finalDrawError(err error) bool {
	return errors.Is(err, bingo.ErrExhausted) ||
		errors.Is(err, bingo.ErrRoomClosed) ||
		errors.Is(err, bingo.ErrRoomNotFound) ||
		errors.Is(err, bingo.ErrValidation)
}

// roomEvent mirrors comm.RoomEvent with the payload left undecoded.
type roomEvent struct {
	Type     string          `json:"type"`
	RoomCode string          `json:"roomCode"`
	Payload  json.RawMessage `json:"payload"`
}

// HandleEvent reacts to one room event envelope: enough players joining
// starts a caller and a finished room stops it.
func (c *Caller) HandleEvent(ctx context.Context, data []byte) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(data, msg); err != nil {
		log.Errorf("caller: invalid room event: %v", err)
		return
	}

	switch msg.Type {
	case comm.EventPlayerJoined:
		var e roomEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			log.Errorf("caller: invalid %s payload: %v", msg.Type, err)
			return
		}
		var joined comm.PlayerJoinedData
		if err := json.Unmarshal(e.Payload, &joined); err != nil {
			log.Errorf("caller: invalid %s payload: %v", msg.Type, err)
			return
		}
		if joined.PlayersCount >= c.minPlayers {
			c.Start(ctx, msg.RoomCode)
		}
	case comm.EventRoomFinished:
		c.Stop(msg.RoomCode)
	}
}
