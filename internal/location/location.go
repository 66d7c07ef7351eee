// Package location resolves employee positions from pings pushed by their devices.
package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"cleanops/internal/domain"
	"cleanops/internal/metrics"
	"cleanops/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrUnavailable     = errors.New("location unavailable")
	ErrInvalidLocation = errors.New("invalid coordinates")
	ErrRateLimited     = errors.New("too many location pings")
)

type Options struct {
	Timeout    time.Duration
	MaxAge     time.Duration
	RateLimit  int
	RateWindow time.Duration
}

// PingProvider serves Capture from the newest stored ping.
type PingProvider struct {
	store  domain.FieldStateRepository
	opts   Options
	logger *zerolog.Logger
	now    func() time.Time
}

func NewPingProvider(store domain.FieldStateRepository, opts Options, logger *zerolog.Logger) *PingProvider {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 5 * time.Minute
	}
	return &PingProvider{store: store, opts: opts, logger: logger, now: time.Now}
}

// Validate checks coordinate ranges.
func Validate(loc models.Location) error {
	switch {
	case math.IsNaN(loc.Latitude) || loc.Latitude < -90 || loc.Latitude > 90:
		return fmt.Errorf("%w: latitude %v", ErrInvalidLocation, loc.Latitude)
	case math.IsNaN(loc.Longitude) || loc.Longitude < -180 || loc.Longitude > 180:
		return fmt.Errorf("%w: longitude %v", ErrInvalidLocation, loc.Longitude)
	case loc.Accuracy < 0:
		return fmt.Errorf("%w: negative accuracy", ErrInvalidLocation)
	}
	return nil
}

// RecordPing stores the employee's current position.
func (p *PingProvider) RecordPing(ctx context.Context, employeeID int64, loc models.Location) error {
	if err := Validate(loc); err != nil {
		metrics.IncLocationPing("invalid")
		return err
	}

	if p.opts.RateLimit > 0 {
		allowed, err := p.store.CheckRateLimit(ctx, fmt.Sprintf("ping:%d", employeeID), p.opts.RateLimit, p.opts.RateWindow)
		if err != nil {
			p.logger.Warn().Err(err).Int64("employee_id", employeeID).Msg("rate limit check failed")
		} else if !allowed {
			metrics.IncLocationPing("rate_limited")
			return ErrRateLimited
		}
	}

	ping := &models.LocationPing{EmployeeID: employeeID, Location: loc, RecordedAt: p.now().UTC()}
	if err := p.store.SavePing(ctx, ping); err != nil {
		metrics.IncLocationPing("error")
		return fmt.Errorf("save ping: %w", err)
	}
	metrics.IncLocationPing("accepted")
	return nil
}

// Capture returns the employee's position if a fresh ping arrives within the timeout.
func (p *PingProvider) Capture(ctx context.Context, employeeID int64) (*models.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	ping, err := p.store.LatestPing(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ping == nil {
		return nil, fmt.Errorf("%w: no ping from employee %d", ErrUnavailable, employeeID)
	}
	if age := p.now().Sub(ping.RecordedAt); age > p.opts.MaxAge {
		return nil, fmt.Errorf("%w: last ping is %s old", ErrUnavailable, age.Truncate(time.Second))
	}

	loc := ping.Location
	return &loc, nil
}
