package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/avvvet/bingo-rooms/internal/bingo"
	"github.com/avvvet/bingo-rooms/internal/roomsvc/models"
)

// SyncUser stores the identity of an authenticated caller, creating the
// user on first sight.
func (s *RoomService) SyncUser(ctx context.Context, userInfo models.User) (*models.User, error) {
	if err := validUser(userInfo.UserId); err != nil {
		return nil, err
	}
	userInfo.Name = strings.TrimSpace(userInfo.Name)
	userInfo.Email = strings.TrimSpace(userInfo.Email)
	switch userInfo.Role {
	case "", models.RolePlayer, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", bingo.ErrValidation, userInfo.Role)
	}

	var user *models.User
	err := s.withRetry(ctx, "sync-user", func() error {
		var err error
		user, err = s.store.UpsertUser(ctx, userInfo)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sync user %d: %w", userInfo.UserId, err)
	}
	return user, nil
}

func (s *RoomService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user *models.User
	err := s.withRetry(ctx, "get-user", func() error {
		var err error
		user, err = s.store.GetUser(ctx, userID)
		return err
	})
	return user, err
}

func (s *RoomService) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := s.withRetry(ctx, "list-users", func() error {
		var err error
		users, err = s.store.ListUsers(ctx)
		return err
	})
	return users, err
}
