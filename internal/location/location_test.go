package location

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"cleanops/internal/models"
	"cleanops/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(opts Options) (*PingProvider, *time.Time) {
	logger := zerolog.New(io.Discard)
	p := NewPingProvider(repository.NewMemoryFieldStateRepository(time.Hour), opts, &logger)
	now := time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	return p, &now
}

func TestCapture(t *testing.T) {
	ctx := context.Background()
	p, now := newProvider(Options{MaxAge: 5 * time.Minute})

	_, err := p.Capture(ctx, 1)
	assert.ErrorIs(t, err, ErrUnavailable)

	loc := models.Location{Latitude: 40.7128, Longitude: -74.006, Accuracy: 12}
	require.NoError(t, p.RecordPing(ctx, 1, loc))

	got, err := p.Capture(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, loc, *got)

	*now = now.Add(6 * time.Minute)
	_, err = p.Capture(ctx, 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRecordPing_Validation(t *testing.T) {
	p, _ := newProvider(Options{})
	ctx := context.Background()

	cases := []models.Location{
		{Latitude: 91},
		{Latitude: -91},
		{Longitude: 181},
		{Latitude: math.NaN()},
		{Accuracy: -1},
	}
	for _, c := range cases {
		assert.ErrorIs(t, p.RecordPing(ctx, 1, c), ErrInvalidLocation)
	}
	assert.NoError(t, p.RecordPing(ctx, 1, models.Location{Latitude: -90, Longitude: 180}))
}

func TestRecordPing_RateLimited(t *testing.T) {
	p, _ := newProvider(Options{RateLimit: 2, RateWindow: time.Minute})
	ctx := context.Background()
	loc := models.Location{Latitude: 1, Longitude: 1}

	require.NoError(t, p.RecordPing(ctx, 3, loc))
	require.NoError(t, p.RecordPing(ctx, 3, loc))
	assert.ErrorIs(t, p.RecordPing(ctx, 3, loc), ErrRateLimited)
	assert.NoError(t, p.RecordPing(ctx, 4, loc), "limit is per employee")
}

type slowStore struct{}

func (s *slowStore) SavePing(ctx context.Context, ping *models.LocationPing) error { return nil }
func (s *slowStore) ClearPing(ctx context.Context, employeeID int64) error         { return nil }
func (s *slowStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func (s *slowStore) LatestPing(ctx context.Context, employeeID int64) (*models.LocationPing, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCapture_Timeout(t *testing.T) {
	logger := zerolog.New(io.Discard)
	p := NewPingProvider(&slowStore{}, Options{Timeout: 20 * time.Millisecond}, &logger)

	start := time.Now()
	_, err := p.Capture(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, errors.Is(err, context.DeadlineExceeded), "cause is flattened into the message")
}
