package models

import (
	"time"

	"github.com/avvvet/bingo-rooms/internal/bingo"
)

// Card is one player's grid in one room; Cells are ordered by position.
type Card struct {
	ID        int64        `json:"id"`
	RoomID    int64        `json:"-"`
	UserID    int64        `json:"-"`
	Cells     []bingo.Cell `json:"cells"`
	CreatedAt time.Time    `json:"-"`
}
