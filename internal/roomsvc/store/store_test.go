package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seq atomic.Int64

// ids stay unique across subtests that share one database.
func nextID() int64 { return seq.Add(1) }

func newUser(t *testing.T, st store.Store) *models.User {
	t.Helper()
	id := nextID()
	u, err := st.UpsertUser(context.Background(), models.User{UserId: id, Name: fmt.Sprintf("user-%d", id), Email: fmt.Sprintf("u%d@example.com", id)})
	require.NoError(t, err)
	return u
}

func newRoom(t *testing.T, st store.Store) *models.Room {
	t.Helper()
	room := &models.Room{Code: fmt.Sprintf("R%05d", nextID()), Name: "test room"}
	require.NoError(t, st.CreateRoom(context.Background(), room))
	return room
}

func newCard(t *testing.T, st store.Store, roomID, userID int64) *models.Card {
	t.Helper()
	ctx := context.Background()
	cells, err := bingo.GenerateCard(bingo.NewSeededSource(uint64(roomID), uint64(userID)), bingo.DefaultUniverse, bingo.GridSize)
	require.NoError(t, err)
	require.NoError(t, st.AddPlayer(ctx, roomID, userID))
	card, err := st.CreateCard(ctx, &models.Card{RoomID: roomID, UserID: userID, Cells: cells})
	require.NoError(t, err)
	return card
}

// testStore runs the behaviour every Store implementation must share.
func testStore(t *testing.T, st store.Store) {
	ctx := context.Background()

	t.Run("UpsertUser", func(t *testing.T) {
		u := newUser(t, st)
		assert.Equal(t, models.RolePlayer, u.Role)
		assert.False(t, u.CreatedAt.IsZero())

		admin, err := st.UpsertUser(ctx, models.User{UserId: u.UserId, Role: models.RoleAdmin})
		require.NoError(t, err)
		assert.Equal(t, u.Name, admin.Name, "empty name keeps the stored one")
		assert.Equal(t, u.Email, admin.Email)
		assert.Equal(t, models.RoleAdmin, admin.Role)

		again, err := st.UpsertUser(ctx, models.User{UserId: u.UserId, Name: "renamed"})
		require.NoError(t, err)
		assert.Equal(t, "renamed", again.Name)
		assert.Equal(t, models.RoleAdmin, again.Role, "empty role keeps the stored one")

		_, err = st.GetUser(ctx, -1)
		assert.ErrorIs(t, err, bingo.ErrUserNotFound)
	})

	t.Run("CreateRoom", func(t *testing.T) {
		room := newRoom(t, st)
		assert.NotZero(t, room.ID)
		assert.Equal(t, bingo.StatusWaiting, room.Status)

		err := st.CreateRoom(ctx, &models.Room{Code: room.Code, Name: "dup"})
		assert.ErrorIs(t, err, bingo.ErrDuplicateCode)

		exists, err := st.RoomCodeExists(ctx, room.Code)
		require.NoError(t, err)
		assert.True(t, exists)

		got, err := st.GetRoomByCode(ctx, room.Code)
		require.NoError(t, err)
		assert.Equal(t, room.ID, got.ID)
		assert.Nil(t, got.FinishedAt)

		_, err = st.GetRoomByCode(ctx, "ZZZZZZZZZZZZ")
		assert.ErrorIs(t, err, bingo.ErrRoomNotFound)

		rooms, err := st.ListRooms(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, rooms)
		assert.Equal(t, room.ID, rooms[0].ID, "newest room first")
	})

	t.Run("Cards", func(t *testing.T) {
		room := newRoom(t, st)
		u := newUser(t, st)

		none, err := st.GetCard(ctx, room.ID, u.UserId)
		require.NoError(t, err)
		assert.Nil(t, none)

		card := newCard(t, st, room.ID, u.UserId)
		require.Len(t, card.Cells, bingo.GridSize)
		require.NoError(t, st.AddPlayer(ctx, room.ID, u.UserId))

		players, err := st.RoomPlayers(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{u.UserId}, players)

		cells, err := bingo.GenerateCard(bingo.NewSeededSource(1, 1), bingo.DefaultUniverse, bingo.GridSize)
		require.NoError(t, err)
		existing, err := st.CreateCard(ctx, &models.Card{RoomID: room.ID, UserID: u.UserId, Cells: cells})
		require.NoError(t, err)
		assert.Equal(t, card.ID, existing.ID)
		assert.Equal(t, card.Cells, existing.Cells)

		cell, err := st.SetCellMarked(ctx, card.ID, 12, true)
		require.NoError(t, err)
		assert.Equal(t, card.Cells[12].Value, cell.Value)
		assert.True(t, cell.Marked)

		_, err = st.SetCellMarked(ctx, card.ID, 30, true)
		assert.ErrorIs(t, err, bingo.ErrInvalidPosition)

		got, err := st.GetCard(ctx, room.ID, u.UserId)
		require.NoError(t, err)
		for _, c := range got.Cells {
			assert.Equal(t, c.Position == 12, c.Marked, "position %d", c.Position)
		}
	})

	t.Run("FinishedRoomRejectsCardsAndMarks", func(t *testing.T) {
		room := newRoom(t, st)
		holder, late := newUser(t, st), newUser(t, st)
		card := newCard(t, st, room.ID, holder.UserId)

		require.NoError(t, st.WithRoomLock(ctx, room.Code, func(tx store.RoomTx) error {
			return tx.SetStatus(ctx, bingo.StatusFinished)
		}))

		cells, err := bingo.GenerateCard(bingo.NewSeededSource(2, 2), bingo.DefaultUniverse, bingo.GridSize)
		require.NoError(t, err)
		_, err = st.CreateCard(ctx, &models.Card{RoomID: room.ID, UserID: late.UserId, Cells: cells})
		assert.ErrorIs(t, err, bingo.ErrRoomClosed)
		none, err := st.GetCard(ctx, room.ID, late.UserId)
		require.NoError(t, err)
		assert.Nil(t, none)

		existing, err := st.CreateCard(ctx, &models.Card{RoomID: room.ID, UserID: holder.UserId, Cells: cells})
		require.NoError(t, err)
		assert.Equal(t, card.ID, existing.ID)

		_, err = st.SetCellMarked(ctx, card.ID, 0, true)
		assert.ErrorIs(t, err, bingo.ErrRoomClosed)
		got, err := st.GetCard(ctx, room.ID, holder.UserId)
		require.NoError(t, err)
		assert.False(t, got.Cells[0].Marked)
	})

	t.Run("RoomLock", func(t *testing.T) {
		room := newRoom(t, st)
		u := newUser(t, st)
		newCard(t, st, room.ID, u.UserId)

		err := st.WithRoomLock(ctx, room.Code, func(tx store.RoomTx) error {
			assert.Equal(t, room.ID, tx.Room().ID)
			for _, n := range []int{4, 8, 15} {
				if _, err := tx.InsertDraw(ctx, n); err != nil {
					return err
				}
			}
			drawn, err := tx.DrawnNumbers(ctx)
			if err != nil {
				return err
			}
			assert.Equal(t, 3, drawn.Len())
			return tx.SetStatus(ctx, bingo.StatusRunning)
		})
		require.NoError(t, err)

		errAbort := errors.New("abort")
		err = st.WithRoomLock(ctx, room.Code, func(tx store.RoomTx) error {
			if _, err := tx.InsertDraw(ctx, 16); err != nil {
				return err
			}
			return errAbort
		})
		assert.ErrorIs(t, err, errAbort)

		draws, err := st.ListDraws(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, draws, 3, "aborted draw is not kept")
		assert.Equal(t, 15, draws[0].Number)

		err = st.WithRoomLock(ctx, room.Code, func(tx store.RoomTx) error {
			_, err := tx.InsertDraw(ctx, 8)
			return err
		})
		assert.ErrorIs(t, err, bingo.ErrStoreFailure, "a number is drawn once per room")

		pattern := bingo.StandardPatterns()[0]
		err = st.WithRoomLock(ctx, room.Code, func(tx store.RoomTx) error {
			assert.Equal(t, bingo.StatusRunning, tx.Room().Status)
			card, err := tx.CardFor(ctx, u.UserId)
			if err != nil {
				return err
			}
			assert.NotNil(t, card)
			if _, err := tx.InsertWinner(ctx, u.UserId, pattern); err != nil {
				return err
			}
			return tx.SetStatus(ctx, bingo.StatusFinished)
		})
		require.NoError(t, err)

		w, err := st.GetWinner(ctx, room.ID)
		require.NoError(t, err)
		require.NotNil(t, w)
		assert.Equal(t, u.UserId, w.UserID)
		assert.Equal(t, pattern, w.Pattern)
		require.NotNil(t, w.User)
		assert.Equal(t, u.Name, w.User.Name)

		got, err := st.GetRoomByCode(ctx, room.Code)
		require.NoError(t, err)
		assert.Equal(t, bingo.StatusFinished, got.Status)
		assert.NotNil(t, got.FinishedAt)

		err = st.WithRoomLock(ctx, room.Code, func(tx store.RoomTx) error {
			_, err := tx.InsertWinner(ctx, u.UserId, pattern)
			return err
		})
		assert.ErrorIs(t, err, bingo.ErrAlreadyFinished)

		err = st.WithRoomLock(ctx, room.Code, func(tx store.RoomTx) error {
			return tx.SetStatus(ctx, bingo.StatusRunning)
		})
		assert.ErrorIs(t, err, bingo.ErrAlreadyFinished)

		history, err := st.FinishedRoomsFor(ctx, u.UserId)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].Won)
		assert.Equal(t, room.Code, history[0].Code)
	})

	t.Run("RoomLockUnknownRoom", func(t *testing.T) {
		err := st.WithRoomLock(ctx, "ZZZZZZZZZZZZ", func(tx store.RoomTx) error { return nil })
		assert.ErrorIs(t, err, bingo.ErrRoomNotFound)
	})

	t.Run("ConcurrentDraws", func(t *testing.T) {
		room := newRoom(t, st)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := st.WithRoomLock(ctx, room.Code, func(tx store.RoomTx) error {
					drawn, err := tx.DrawnNumbers(ctx)
					if err != nil {
						return err
					}
					n, err := bingo.DrawNext(bingo.DefaultSource, drawn, bingo.DefaultUniverse)
					if err != nil {
						return err
					}
					_, err = tx.InsertDraw(ctx, n)
					return err
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		draws, err := st.ListDraws(ctx, room.ID)
		require.NoError(t, err)
		assert.Len(t, draws, 20)
		seen := map[int]bool{}
		for _, d := range draws {
			assert.False(t, seen[d.Number], "number %d drawn twice", d.Number)
			seen[d.Number] = true
		}
	})
}
