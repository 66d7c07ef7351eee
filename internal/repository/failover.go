package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cleanops/internal/domain"
	"cleanops/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverFieldStateRepository serves from primary until it errors, then from
// fallback, probing primary again once per recoveryInterval.
type FailoverFieldStateRepository struct {
	primary   domain.FieldStateRepository
	fallback  domain.FieldStateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverFieldStateRepository(primary, fallback domain.FieldStateRepository, logger *zerolog.Logger) *FailoverFieldStateRepository {
	return &FailoverFieldStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverFieldStateRepository) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("primary field state repository failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverFieldStateRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > recoveryInterval
}

func (r *FailoverFieldStateRepository) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary field state repository recovered")
	}
}

func (r *FailoverFieldStateRepository) SavePing(ctx context.Context, ping *models.LocationPing) error {
	if r.usePrimary() {
		err := r.primary.SavePing(ctx, ping)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SavePing(ctx, ping)
}

func (r *FailoverFieldStateRepository) LatestPing(ctx context.Context, employeeID int64) (*models.LocationPing, error) {
	if r.usePrimary() {
		ping, err := r.primary.LatestPing(ctx, employeeID)
		if err == nil {
			r.recovered()
			return ping, nil
		}
		r.markDown(err)
	}
	return r.fallback.LatestPing(ctx, employeeID)
}

func (r *FailoverFieldStateRepository) ClearPing(ctx context.Context, employeeID int64) error {
	if r.usePrimary() {
		err := r.primary.ClearPing(ctx, employeeID)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.ClearPing(ctx, employeeID)
}

func (r *FailoverFieldStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
