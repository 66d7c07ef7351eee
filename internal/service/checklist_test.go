package service

import (
	"context"
	"testing"

	"cleanops/internal/config"
	"cleanops/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeProgress(t *testing.T) {
	assert.Equal(t, models.ChecklistProgress{Total: 3, Completed: 2, Percentage: 67}, ComputeProgress(3, 2))
	assert.Equal(t, models.ChecklistProgress{Total: 3, Completed: 1, Percentage: 33}, ComputeProgress(3, 1))
	assert.Equal(t, models.ChecklistProgress{Total: 8, Completed: 1, Percentage: 13}, ComputeProgress(8, 1))
	assert.Equal(t, models.ChecklistProgress{}, ComputeProgress(0, 0))
	assert.Equal(t, 100, ComputeProgress(4, 4).Percentage)
}

func TestChecklistService_ProgressAndGate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.startedBooking(t, ana)
	svc := NewChecklistService(e.db)

	e.completeItems(t, ana, b.ID, 2)

	p, err := svc.Progress(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChecklistProgress{Total: 3, Completed: 2, Percentage: 67}, p)

	done, err := svc.IsComplete(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, done)

	required, err := svc.RequiredComplete(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, required)

	err = svc.Gate(ctx, b.ID, config.GateRequired)
	assert.ErrorIs(t, err, ErrChecklistIncomplete)
	assert.Contains(t, err.Error(), "67%")

	e.completeItems(t, ana, b.ID, 3)
	done, err = svc.IsComplete(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, done)
	assert.NoError(t, svc.Gate(ctx, b.ID, config.GateAll))
}

func TestChecklistService_OptionalItems(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	req := quoteRequest()
	req.ChecklistItemIDs = []int64{1, 4}
	q, err := e.quotes.SubmitQuote(ctx, client, req)
	require.NoError(t, err)
	b, err := e.quotes.ApproveQuote(ctx, admin, q.ID, ApproveRequest{})
	require.NoError(t, err)
	_, err = e.bookings.AssignEmployee(ctx, admin, b.ID, ana.ID)
	require.NoError(t, err)
	_, err = e.bookings.StartWork(ctx, ana, b.ID)
	require.NoError(t, err)

	svc := NewChecklistService(e.db)
	items, err := e.db.GetBookingChecklist(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	_, err = svc.Toggle(ctx, items[0].ID, true)
	require.NoError(t, err)

	required, err := svc.RequiredComplete(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, required)
	assert.NoError(t, svc.Gate(ctx, b.ID, config.GateRequired))
	assert.ErrorIs(t, svc.Gate(ctx, b.ID, config.GateAll), ErrChecklistIncomplete)
}

func TestChecklistService_InitializeIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.confirmedBooking(t, "09:00")
	svc := NewChecklistService(e.db)

	n, err := svc.Initialize(ctx, b.ID, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Zero(t, n)

	p, err := svc.Progress(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
}

func TestChecklistService_ToggleAndRate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	b := e.startedBooking(t, ana)
	svc := NewChecklistService(e.db)

	items, err := e.db.GetBookingChecklist(ctx, b.ID)
	require.NoError(t, err)
	id := items[0].ID

	// rating before completion is accepted
	c, err := svc.Rate(ctx, id, 4, nil)
	require.NoError(t, err)
	require.NotNil(t, c.Rating)
	assert.Equal(t, 4, *c.Rating)
	assert.False(t, c.Completed)

	c, err = svc.Toggle(ctx, id, true)
	require.NoError(t, err)
	assert.True(t, c.Completed)
	assert.NotNil(t, c.CompletedAt)

	c, err = svc.Toggle(ctx, id, false)
	require.NoError(t, err)
	assert.False(t, c.Completed)
	assert.Nil(t, c.CompletedAt)

	_, err = svc.Rate(ctx, id, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Rate(ctx, id, 6, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Toggle(ctx, 9999, true)
	assert.ErrorIs(t, err, ErrNotFound)

	pending := e.confirmedBooking(t, "15:00")
	pendingItems, err := e.db.GetBookingChecklist(ctx, pending.ID)
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, pendingItems[0].ID, true)
	assert.ErrorIs(t, err, ErrInvalidState, "booking is not in progress")
}
