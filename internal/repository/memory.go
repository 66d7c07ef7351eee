package repository

import (
	"context"
	"sync"
	"time"

	"cleanops/internal/models"
)

type MemoryFieldStateRepository struct {
	pings      sync.Map
	rateLimits sync.Map
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
}

func NewMemoryFieldStateRepository(ttl time.Duration) *MemoryFieldStateRepository {
	return &MemoryFieldStateRepository{
		ttl: ttl,
		now: time.Now,
	}
}

type pingEntry struct {
	ping      *models.LocationPing
	expiresAt time.Time
}

func (r *MemoryFieldStateRepository) SavePing(_ context.Context, ping *models.LocationPing) error {
	cp := *ping
	r.pings.Store(ping.EmployeeID, &pingEntry{ping: &cp, expiresAt: r.now().Add(r.ttl)})
	return nil
}

func (r *MemoryFieldStateRepository) LatestPing(_ context.Context, employeeID int64) (*models.LocationPing, error) {
	val, ok := r.pings.Load(employeeID)
	if !ok {
		return nil, nil
	}
	entry := val.(*pingEntry)
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		r.pings.Delete(employeeID)
		return nil, nil
	}
	cp := *entry.ping
	return &cp, nil
}

func (r *MemoryFieldStateRepository) ClearPing(_ context.Context, employeeID int64) error {
	r.pings.Delete(employeeID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryFieldStateRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
