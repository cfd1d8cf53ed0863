package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/comm"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/store"
	"github.com/lestrrat-go/backoff/v2"
	log "github.com/sirupsen/logrus"
)

// Notifier receives room events. Delivery is best effort and never awaited.
type Notifier interface {
	Notify(ctx context.Context, e comm.RoomEvent)
}

type Options struct {
	Universe int
	Source   bingo.Source
	Notifier Notifier
	// Retries bounds how many times a store failure is retried.
	Retries          int
	RetryMinInterval time.Duration
	RetryMaxInterval time.Duration
	Now              func() time.Time
}

// RoomService runs the room lifecycle: joining, marking, drawing, claiming
// and closing, on top of a Store.
type RoomService struct {
	store    store.Store
	src      bingo.Source
	universe int
	patterns []bingo.Pattern
	notifier Notifier
	retries  int
	retry    backoff.Policy
	now      func() time.Time
}

const maxCodeAttempts = 5

func NewRoomService(st store.Store, opts Options) *RoomService {
	if opts.Universe == 0 {
		opts.Universe = bingo.DefaultUniverse
	}
	if opts.Source == nil {
		opts.Source = bingo.DefaultSource
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.RetryMinInterval == 0 {
		opts.RetryMinInterval = 50 * time.Millisecond
	}
	if opts.RetryMaxInterval == 0 {
		opts.RetryMaxInterval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &RoomService{
		store:    st,
		src:      bingo.LockedSource(opts.Source),
		universe: opts.Universe,
		patterns: bingo.StandardPatterns(),
		notifier: opts.Notifier,
		retries:  opts.Retries,
		retry: backoff.Exponential(
			backoff.WithMinInterval(opts.RetryMinInterval),
			backoff.WithMaxInterval(opts.RetryMaxInterval),
			// one extra tick so the attempt counter, not the controller, ends the loop
			backoff.WithMaxRetries(opts.Retries+1),
		),
		now: opts.Now,
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, comm.RoomEvent) {}

// withRetry runs fn once, then again on store failures up to s.retries times.
func (s *RoomService) withRetry(ctx context.Context, op string, fn func() error) error {
	if s.retries <= 0 {
		return fn()
	}

	bctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b := s.retry.Start(bctx)
	err := ctx.Err()
	for attempt := 0; attempt <= s.retries && backoff.Continue(b); attempt++ {
		err = fn()
		if err == nil || !bingo.Retryable(err) {
			return err
		}
		log.WithFields(log.Fields{"op": op, "attempt": attempt + 1}).Warnf("store failure: %v", err)
	}
	if err != nil && bingo.Retryable(err) {
		log.WithField("op", op).Errorf("giving up after %d retries: %v", s.retries, err)
	}
	return err
}

func (s *RoomService) notify(ctx context.Context, eventType, code string, payload any) {
	s.notifier.Notify(ctx, comm.RoomEvent{
		Type:     eventType,
		RoomCode: code,
		At:       s.now().UTC(),
		Payload:  payload,
	})
}

func lookupCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return "", fmt.Errorf("%w: room code is required", bingo.ErrValidation)
	}
	return c, nil
}

func validUser(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id is required", bingo.ErrValidation)
	}
	return nil
}

type CreateRoomInput struct {
	Name  string  `json:"name"`
	Prize *string `json:"prize"`
	Code  string  `json:"code"`
}

// CreateRoom opens a WAITING room. Without an explicit code one is generated.
func (s *RoomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*models.Room, error) {
	name := strings.TrimSpace(in.Name)
	if utf8.RuneCountInString(name) < 2 {
		return nil, fmt.Errorf("%w: room name needs at least 2 characters", bingo.ErrValidation)
	}

	var prize *string
	if in.Prize != nil {
		if p := strings.TrimSpace(*in.Prize); p != "" {
			prize = &p
		}
	}

	room := &models.Room{Name: name, Prize: prize, Status: bingo.StatusWaiting}

	if in.Code != "" {
		code, err := bingo.NormalizeRoomCode(in.Code)
		if err != nil {
			return nil, err
		}
		room.Code = code
		err = s.withRetry(ctx, "create-room", func() error {
			return s.store.CreateRoom(ctx, room)
		})
		if err != nil {
			return nil, err
		}
		log.Infof("room %s created", room.Code)
		return room, nil
	}

	for i := 0; i < maxCodeAttempts; i++ {
		room.Code = bingo.GenerateRoomCode(s.src, bingo.RoomCodeLength)

		var taken bool
		err := s.withRetry(ctx, "room-code-exists", func() error {
			var err error
			taken, err = s.store.RoomCodeExists(ctx, room.Code)
			return err
		})
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		err = s.withRetry(ctx, "create-room", func() error {
			return s.store.CreateRoom(ctx, room)
		})
		if errors.Is(err, bingo.ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Infof("room %s created", room.Code)
		return room, nil
	}
	return nil, fmt.Errorf("%w: no free room code after %d attempts", bingo.ErrDuplicateCode, maxCodeAttempts)
}

// Join makes userID a player of the room and deals their card on first join.
func (s *RoomService) Join(ctx context.Context, roomCode string, userID int64) (*models.JoinResult, error) {
	code, err := lookupCode(roomCode)
	if err != nil {
		return nil, err
	}
	if err := validUser(userID); err != nil {
		return nil, err
	}

	var (
		room  *models.Room
		card  *models.Card
		dealt bool
	)
	err = s.withRetry(ctx, "join", func() error {
		var err error
		room, err = s.store.GetRoomByCode(ctx, code)
		if err != nil {
			return err
		}

		card, err = s.store.GetCard(ctx, room.ID, userID)
		if err != nil {
			return err
		}
		if card != nil {
			return s.store.AddPlayer(ctx, room.ID, userID)
		}

		if err := room.Status.EnsureOpen(); err != nil {
			return err
		}
		cells, err := bingo.GenerateCard(s.src, s.universe, bingo.GridSize)
		if err != nil {
			return err
		}
		// the store refuses the card if a close or win committed since the read
		card, err = s.store.CreateCard(ctx, &models.Card{RoomID: room.ID, UserID: userID, Cells: cells})
		if err != nil {
			return err
		}
		dealt = true
		return s.store.AddPlayer(ctx, room.ID, userID)
	})
	if err != nil {
		return nil, err
	}

	if dealt {
		if room, err = s.store.GetRoomByCode(ctx, code); err != nil {
			return nil, err
		}
	}

	summary, err := s.summary(ctx, room, userID)
	if err != nil {
		return nil, err
	}

	if dealt {
		log.Infof("user %d joined room %s", userID, code)
		s.notify(ctx, comm.EventPlayerJoined, code, comm.PlayerJoinedData{
			UserId:       userID,
			PlayersCount: summary.PlayersCount,
		})
	}

	return &models.JoinResult{Room: summary, Card: card}, nil
}

// Mark sets the marked flag of one cell on the caller's card.
func (s *RoomService) Mark(ctx context.Context, roomCode string, userID int64, position int, marked bool) (*bingo.Cell, error) {
	code, err := lookupCode(roomCode)
	if err != nil {
		return nil, err
	}
	if err := validUser(userID); err != nil {
		return nil, err
	}
	if !bingo.ValidPosition(position) {
		return nil, fmt.Errorf("%w: %d is outside 0..%d", bingo.ErrInvalidPosition, position, bingo.GridSize-1)
	}

	var cell *bingo.Cell
	err = s.withRetry(ctx, "mark", func() error {
		room, err := s.store.GetRoomByCode(ctx, code)
		if err != nil {
			return err
		}
		if err := room.Status.EnsureOpen(); err != nil {
			return err
		}

		card, err := s.store.GetCard(ctx, room.ID, userID)
		if err != nil {
			return err
		}
		if card == nil {
			return bingo.ErrNoCard
		}

		cell, err = s.store.SetCellMarked(ctx, card.ID, position, marked)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cell, nil
}

// Draw calls the next number. The first draw moves the room to RUNNING.
func (s *RoomService) Draw(ctx context.Context, roomCode string) (*models.Draw, error) {
	code, err := lookupCode(roomCode)
	if err != nil {
		return nil, err
	}

	var (
		draw  *models.Draw
		count int
		from  bingo.Status
		to    bingo.Status
	)
	err = s.withRetry(ctx, "draw", func() error {
		return s.store.WithRoomLock(ctx, code, func(tx store.RoomTx) error {
			room := tx.Room()
			from = room.Status

			next, err := room.Status.AfterDraw()
			if err != nil {
				return err
			}

			drawn, err := tx.DrawnNumbers(ctx)
			if err != nil {
				return err
			}
			number, err := bingo.DrawNext(s.src, drawn, s.universe)
			if err != nil {
				return err
			}

			draw, err = tx.InsertDraw(ctx, number)
			if err != nil {
				return err
			}
			count = drawn.Len() + 1

			to = next
			if next != room.Status {
				return tx.SetStatus(ctx, next)
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, bingo.ErrExhausted) {
			log.Infof("room %s has no numbers left to draw", code)
		}
		return nil, err
	}

	log.Debugf("room %s drew %d (%d/%d)", code, draw.Number, count, s.universe)
	s.notify(ctx, comm.EventDraw, code, comm.DrawData{Number: draw.Number, DrawnAt: draw.DrawnAt, Count: count})

	if from != to {
		log.Infof("room %s status %s -> %s", code, from, to)
		s.notify(ctx, comm.EventRoomRunning, code, nil)
	}
	return draw, nil
}

// Claim validates the caller's card against the drawn numbers. A winning
// claim records the winner and finishes the room in one transaction.
func (s *RoomService) Claim(ctx context.Context, roomCode string, userID int64) (*models.Winner, error) {
	code, err := lookupCode(roomCode)
	if err != nil {
		return nil, err
	}
	if err := validUser(userID); err != nil {
		return nil, err
	}

	var (
		winner *models.Winner
		from   bingo.Status
	)
	err = s.withRetry(ctx, "claim", func() error {
		return s.store.WithRoomLock(ctx, code, func(tx store.RoomTx) error {
			room := tx.Room()
			from = room.Status
			if err := room.Status.EnsureOpen(); err != nil {
				return err
			}

			card, err := tx.CardFor(ctx, userID)
			if err != nil {
				return err
			}
			if card == nil {
				return bingo.ErrNoCard
			}

			drawn, err := tx.DrawnNumbers(ctx)
			if err != nil {
				return err
			}
			pattern, ok := bingo.FindWinningPattern(card.Cells, drawn, s.patterns)
			if !ok {
				return bingo.ErrInvalidClaim
			}

			winner, err = tx.InsertWinner(ctx, userID, pattern)
			if err != nil {
				if errors.Is(err, bingo.ErrAlreadyFinished) {
					return bingo.ErrRoomClosed
				}
				return err
			}
			return tx.SetStatus(ctx, bingo.StatusFinished)
		})
	})
	if err != nil {
		if errors.Is(err, bingo.ErrInvalidClaim) {
			log.Infof("user %d claim in room %s rejected", userID, code)
		}
		return nil, err
	}

	winner.User = s.userRef(ctx, userID)

	log.Infof("room %s status %s -> %s, winner user %d pattern %s", code, from, bingo.StatusFinished, userID, winner.Pattern)
	id := userID
	s.notify(ctx, comm.EventRoomFinished, code, comm.FinishData{WinnerUserId: &id, Pattern: winner.Pattern.Positions()})

	return winner, nil
}

// Close finishes the room without a winner.
func (s *RoomService) Close(ctx context.Context, roomCode string) (*models.Room, error) {
	code, err := lookupCode(roomCode)
	if err != nil {
		return nil, err
	}

	var from bingo.Status
	err = s.withRetry(ctx, "close", func() error {
		return s.store.WithRoomLock(ctx, code, func(tx store.RoomTx) error {
			room := tx.Room()
			from = room.Status
			next, err := room.Status.Finish()
			if err != nil {
				return err
			}
			return tx.SetStatus(ctx, next)
		})
	})
	if err != nil {
		return nil, err
	}

	log.Infof("room %s status %s -> %s (closed)", code, from, bingo.StatusFinished)
	s.notify(ctx, comm.EventRoomFinished, code, comm.FinishData{})

	var room *models.Room
	err = s.withRetry(ctx, "get-room", func() error {
		var err error
		room, err = s.store.GetRoomByCode(ctx, code)
		return err
	})
	return room, err
}

func (s *RoomService) userRef(ctx context.Context, userID int64) *models.UserRef {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, bingo.ErrUserNotFound) {
			log.Warnf("load user %d: %v", userID, err)
		}
		return nil
	}
	return &models.UserRef{UserId: u.UserId, Name: u.Name, Email: u.Email}
}
