package models

import (
	"time"

	"github.com/avvvet/bingo-rooms/internal/bingo"
)

type Room struct {
	ID         int64        `json:"id"`
	Code       string       `json:"code"`
	Name       string       `json:"name"`
	Prize      *string      `json:"prize"`
	Status     bingo.Status `json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
	FinishedAt *time.Time   `json:"finishedAt"`
}

type Draw struct {
	RoomID  int64     `json:"-"`
	Number  int       `json:"number"`
	DrawnAt time.Time `json:"drawnAt"`
}

type Winner struct {
	RoomID    int64         `json:"-"`
	UserID    int64         `json:"userId"`
	Pattern   bingo.Pattern `json:"pattern"`
	CreatedAt time.Time     `json:"createdAt"`
	User      *UserRef      `json:"user,omitempty"`
}
