package services

import (
	"context"
	"errors"
	"fmt"

	"costmanager/internal/core"
	"costmanager/internal/log"
	"costmanager/internal/store"
)

// UserStore is the storage a UserService needs.
type UserStore interface {
	store.UserStore
	store.CostTotaler
}

type UserService struct {
	store  UserStore
	logger *log.Logger
}

func NewUserService(s UserStore, logger *log.Logger) *UserService {
	if logger == nil {
		logger = log.Discard()
	}
	return &UserService{store: s, logger: logger.WithComponent(log.ComponentUser)}
}

func (s *UserService) AddUser(ctx context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if err := s.store.AddUser(ctx, u); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.User{}, fmt.Errorf("user %d already exists: %w", u.ID, err)
		}
		return core.User{}, fmt.Errorf("%w: add user: %w", core.ErrInternal, err)
	}
	s.logger.InfoContext(ctx, "User added", log.FieldUserID, u.ID)
	return u, nil
}

// GetUser returns the user together with the sum of all their costs.
func (s *UserService) GetUser(ctx context.Context, id int64) (core.UserSummary, error) {
	if id <= 0 {
		return core.UserSummary{}, fmt.Errorf("%w: id must be a positive integer", core.ErrInvalidRequest)
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return core.UserSummary{}, fmt.Errorf("%w: get user: %w", core.ErrInternal, err)
	}
	if u == nil {
		return core.UserSummary{}, fmt.Errorf("%w: user %d", core.ErrNotFound, id)
	}
	total, err := s.store.TotalCosts(ctx, id)
	if err != nil {
		return core.UserSummary{}, fmt.Errorf("%w: total costs: %w", core.ErrInternal, err)
	}
	return core.UserSummary{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		ID:        u.ID,
		Total:     total,
	}, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]core.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %w", core.ErrInternal, err)
	}
	if users == nil {
		users = []core.User{}
	}
	return users, nil
}
