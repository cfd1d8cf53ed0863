package models

import (
	"time"

	"github.com/avvvet/bingo-rooms/internal/bingo"
)

// RoomSummary is the list projection of a room for one viewer.
type RoomSummary struct {
	ID              int64        `json:"id"`
	Code            string       `json:"code"`
	Name            string       `json:"name"`
	Status          bingo.Status `json:"status"`
	Prize           *string      `json:"prize"`
	CreatedAt       time.Time    `json:"createdAt"`
	FinishedAt      *time.Time   `json:"finishedAt"`
	PlayersCount    int          `json:"playersCount"`
	IsParticipating bool         `json:"isParticipating"`
	WinnerUserID    *int64       `json:"winnerUserId"`
	Winner          *Winner      `json:"winner"`
}

// RoomDetail adds draw history (newest first) and the viewer's card.
type RoomDetail struct {
	Room  RoomSummary `json:"room"`
	Draws []Draw      `json:"draws"`
	Card  *Card       `json:"card"`
}

type JoinResult struct {
	Room RoomSummary `json:"room"`
	Card *Card       `json:"card"`
}

type HistoryEntry struct {
	RoomID     int64      `json:"roomId"`
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Prize      *string    `json:"prize"`
	FinishedAt *time.Time `json:"finishedAt"`
	Won        bool       `json:"won"`
}

// Summarize builds the RoomSummary of room as seen by viewerID.
func Summarize(room *Room, players []int64, winner *Winner, viewerID int64) RoomSummary {
	s := RoomSummary{
		ID:           room.ID,
		Code:         room.Code,
		Name:         room.Name,
		Status:       room.Status,
		Prize:        room.Prize,
		CreatedAt:    room.CreatedAt,
		FinishedAt:   room.FinishedAt,
		PlayersCount: len(players),
		Winner:       winner,
	}
	for _, id := range players {
		if id == viewerID {
			s.IsParticipating = true
			break
		}
	}
	if winner != nil {
		id := winner.UserID
		s.WinnerUserID = &id
		finished := winner.CreatedAt
		s.FinishedAt = &finished
	}
	return s
}
