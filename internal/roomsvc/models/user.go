package models

import (
	"time"
)

type Role string

const (
	RolePlayer Role = "PLAYER"
	RoleAdmin  Role = "ADMIN"
)

// User represents the users table. Rows are owned by the identity provider
// and synced on each authenticated request.
type User struct {
	UserId    int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserRef is the public identity attached to winners.
type UserRef struct {
	UserId int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
}
