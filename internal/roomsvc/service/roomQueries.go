package service

import (
	"context"

	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
)

func (s *RoomService) summary(ctx context.Context, room *models.Room, viewerID int64) (models.RoomSummary, error) {
	var (
		players []int64
		winner  *models.Winner
	)
	err := s.withRetry(ctx, "room-summary", func() error {
		var err error
		if players, err = s.store.RoomPlayers(ctx, room.ID); err != nil {
			return err
		}
		winner, err = s.store.GetWinner(ctx, room.ID)
		return err
	})
	if err != nil {
		return models.RoomSummary{}, err
	}

	if winner != nil && winner.User == nil {
		winner.User = s.userRef(ctx, winner.UserID)
	}
	return models.Summarize(room, players, winner, viewerID), nil
}

// ListRooms returns every room, newest first, as seen by viewerID.
func (s *RoomService) ListRooms(ctx context.Context, viewerID int64) ([]models.RoomSummary, error) {
	var rooms []*models.Room
	err := s.withRetry(ctx, "list-rooms", func() error {
		var err error
		rooms, err = s.store.ListRooms(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		sum, err := s.summary(ctx, r, viewerID)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

// GetRoom returns the room with its draws and the viewer's card, if any.
func (s *RoomService) GetRoom(ctx context.Context, roomCode string, viewerID int64) (*models.RoomDetail, error) {
	code, err := lookupCode(roomCode)
	if err != nil {
		return nil, err
	}

	var (
		room  *models.Room
		draws []models.Draw
		card  *models.Card
	)
	err = s.withRetry(ctx, "get-room", func() error {
		var err error
		if room, err = s.store.GetRoomByCode(ctx, code); err != nil {
			return err
		}
		if draws, err = s.store.ListDraws(ctx, room.ID); err != nil {
			return err
		}
		if viewerID > 0 {
			card, err = s.store.GetCard(ctx, room.ID, viewerID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	sum, err := s.summary(ctx, room, viewerID)
	if err != nil {
		return nil, err
	}
	if draws == nil {
		draws = []models.Draw{}
	}
	return &models.RoomDetail{Room: sum, Draws: draws, Card: card}, nil
}

// History lists finished rooms userID played in, newest first.
func (s *RoomService) History(ctx context.Context, userID int64) ([]models.HistoryEntry, error) {
	if err := validUser(userID); err != nil {
		return nil, err
	}

	var history []models.HistoryEntry
	err := s.withRetry(ctx, "history", func() error {
		var err error
		history, err = s.store.FinishedRoomsFor(ctx, userID)
		return err
	})
	if history == nil && err == nil {
		history = []models.HistoryEntry{}
	}
	return history, err
}
