package services

import (
	"context"
	"fmt"
	"time"

	"costmanager/internal/core"
	"costmanager/internal/log"
	"costmanager/internal/store"
)

// UserDirectory answers whether a user id is known.
type UserDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// CostService validates and stores expense records.
type CostService struct {
	costs  store.CostWriter
	users  UserDirectory
	now    func() time.Time
	logger *log.Logger
}

func NewCostService(costs store.CostWriter, users UserDirectory, logger *log.Logger) *CostService {
	if logger == nil {
		logger = log.Discard()
	}
	return &CostService{
		costs:  costs,
		users:  users,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentCost),
	}
}

// AddCost stores c after validation. A zero CreatedAt becomes now.
func (s *CostService) AddCost(ctx context.Context, c core.Cost) (core.Cost, error) {
	if err := c.Validate(); err != nil {
		return core.Cost{}, err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	if s.users != nil {
		ok, err := s.users.Exists(ctx, c.UserID)
		if err != nil {
			return core.Cost{}, fmt.Errorf("%w: check user %d: %w", core.ErrInternal, c.UserID, err)
		}
		if !ok {
			return core.Cost{}, fmt.Errorf("%w: user does not exist", core.ErrInvalidRequest)
		}
	}

	saved, err := s.costs.AddCost(ctx, c)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save cost",
			append(log.NewFields().WithCost(c.UserID, string(c.Category), c.Sum).WithError(err).ToSlice(),
				log.FieldErrorType, log.ErrorTypeDatabase)...)
		return core.Cost{}, fmt.Errorf("%w: save cost: %w", core.ErrInternal, err)
	}

	s.logger.InfoContext(ctx, "Cost added",
		log.NewFields().WithCost(saved.UserID, string(saved.Category), saved.Sum).ToSlice()...)
	return saved, nil
}
