package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
)

// Store is the record store the room service reads and writes. Lookups that
// find nothing return (nil, nil) unless noted; GetRoomByCode and GetUser
// return the matching not-found error instead.
type Store interface {
	UpsertUser(ctx context.Context, u models.User) (*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// CreateRoom fills in ID and CreatedAt. A taken code fails with
	// bingo.ErrDuplicateCode.
	CreateRoom(ctx context.Context, room *models.Room) error
	RoomCodeExists(ctx context.Context, code string) (bool, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	// ListRooms returns rooms newest first.
	ListRooms(ctx context.Context) ([]*models.Room, error)
	RoomPlayers(ctx context.Context, roomID int64) ([]int64, error)
	GetWinner(ctx context.Context, roomID int64) (*models.Winner, error)
	// ListDraws returns draws newest first.
	ListDraws(ctx context.Context, roomID int64) ([]models.Draw, error)

	// AddPlayer is a no-op when the membership already exists.
	AddPlayer(ctx context.Context, roomID, userID int64) error
	GetCard(ctx context.Context, roomID, userID int64) (*models.Card, error)
	// CreateCard persists card and its cells. If a card already exists for
	// the pair, the existing one is returned and the argument is discarded.
	// A new card for a finished room fails with bingo.ErrRoomClosed.
	CreateCard(ctx context.Context, card *models.Card) (*models.Card, error)
	// SetCellMarked updates exactly one cell. A missing cell fails with
	// bingo.ErrInvalidPosition, a finished room with bingo.ErrRoomClosed.
	SetCellMarked(ctx context.Context, cardID int64, position int, marked bool) (*bingo.Cell, error)

	// FinishedRoomsFor lists finished rooms userID joined, newest first.
	FinishedRoomsFor(ctx context.Context, userID int64) ([]models.HistoryEntry, error)

	// WithRoomLock runs fn while holding the room exclusively. Changes made
	// through tx are committed only when fn returns nil.
	WithRoomLock(ctx context.Context, code string, fn func(tx RoomTx) error) error
}

// RoomTx is the view of one locked room inside WithRoomLock.
type RoomTx interface {
	Room() *models.Room
	DrawnNumbers(ctx context.Context) (bingo.NumberSet, error)
	InsertDraw(ctx context.Context, number int) (*models.Draw, error)
	CardFor(ctx context.Context, userID int64) (*models.Card, error)
	// InsertWinner fails with bingo.ErrAlreadyFinished if the room has one.
	InsertWinner(ctx context.Context, userID int64, pattern bingo.Pattern) (*models.Winner, error)
	// SetStatus is a conditional write on the current status; moves the
	// status machine does not allow fail with bingo.ErrAlreadyFinished or
	// bingo.ErrValidation.
	SetStatus(ctx context.Context, status bingo.Status) error
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", bingo.ErrStoreFailure, err)
}

func checkTransition(from, to bingo.Status) error {
	if from.CanTransition(to) {
		return nil
	}
	if from == bingo.StatusFinished {
		return bingo.ErrAlreadyFinished
	}
	return fmt.Errorf("%w: room status cannot move %s -> %s", bingo.ErrValidation, from, to)
}
