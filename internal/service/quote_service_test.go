package service

import (
	"context"
	"testing"

	"cleanops/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteService_SubmitQuote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	q, err := e.quotes.SubmitQuote(ctx, client, quoteRequest())
	require.NoError(t, err)
	assert.NotZero(t, q.ID)
	assert.Equal(t, models.QuoteStatusPending, q.Status)
	assert.Equal(t, client.ID, q.RequesterID)
	assert.Equal(t, 100.0, q.Price.AreaCharge)
	assert.Equal(t, 150.0, q.Price.Subtotal)
	assert.Equal(t, 22.5, q.Price.Discount)
	assert.Equal(t, 127.5, q.Price.Total)

	stored, err := e.db.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, stored.ChecklistItemIDs)
}

func TestQuoteService_SubmitQuoteValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	two := 2

	tests := []struct {
		name   string
		mutate func(*QuoteRequest)
	}{
		{"zero area", func(r *QuoteRequest) { r.Area = 0 }},
		{"no service", func(r *QuoteRequest) { r.ServiceType = "" }},
		{"no checklist items", func(r *QuoteRequest) { r.ChecklistItemIDs = nil }},
		{"unknown service", func(r *QuoteRequest) { r.ServiceType = "pool_cleaning" }},
		{"inactive service", func(r *QuoteRequest) { r.ServiceType = "carpet_cleaning" }},
		{"item from other service", func(r *QuoteRequest) { r.ChecklistItemIDs = []int64{1, 10} }},
		{"item for other frequency", func(r *QuoteRequest) { r.Frequency = models.FrequencyOnce; r.ChecklistItemIDs = []int64{5} }},
		{"duplicate item", func(r *QuoteRequest) { r.ChecklistItemIDs = []int64{1, 1} }},
		{"bad frequency", func(r *QuoteRequest) { r.Frequency = "daily" }},
		{"bad property", func(r *QuoteRequest) { r.PropertyType = "castle" }},
		{"rooms on commercial", func(r *QuoteRequest) { r.PropertyType = models.PropertyCommercial; r.Bedrooms = &two }},
		{"bad email", func(r *QuoteRequest) { r.RequesterEmail = "nope" }},
		{"email with display name", func(r *QuoteRequest) { r.RequesterEmail = "Carla <carla@example.com>" }},
		{"bad language", func(r *QuoteRequest) { r.Language = "fr" }},
		{"bad date", func(r *QuoteRequest) { r.PreferredDate = "10/06/2030" }},
		{"bad time", func(r *QuoteRequest) { r.PreferredTime = "25:00" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := quoteRequest()
			tt.mutate(&req)
			_, err := e.quotes.SubmitQuote(ctx, client, req)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, "invalid_input", Code(err))
		})
	}

	_, err := e.quotes.SubmitQuote(ctx, ana, quoteRequest())
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestQuoteService_ApproveQuote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	q, err := e.quotes.SubmitQuote(ctx, client, quoteRequest())
	require.NoError(t, err)

	_, err = e.quotes.ApproveQuote(ctx, client, q.ID, ApproveRequest{})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	b, err := e.quotes.ApproveQuote(ctx, admin, q.ID, ApproveRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.Nil(t, b.EmployeeID)
	assert.Equal(t, serviceDate, b.ServiceDate)
	assert.Equal(t, "09:00", b.ServiceTime)
	assert.Equal(t, 180, b.DurationMinutes, "catalog duration")
	assert.Equal(t, 127.5, b.FinalPrice)
	assert.Equal(t, "Calle Mayor 1", b.Address)

	stored, err := e.db.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusApproved, stored.Status)
	assert.Equal(t, admin.ID, stored.ReviewedBy)

	items, err := e.db.GetBookingChecklist(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	require.Len(t, e.dispatcher.sent, 1)
	n := e.dispatcher.sent[0]
	assert.Equal(t, models.TemplateQuoteApproved, n.Template)
	assert.Equal(t, "carla@example.com", n.Recipient)
	assert.Equal(t, "quote_approved:"+itoa(q.ID), n.DedupKey)
	assert.Equal(t, "$127.50", n.Data["total"])

	// a second approval is a state error and sends nothing
	_, err = e.quotes.ApproveQuote(ctx, admin, q.ID, ApproveRequest{})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Len(t, e.dispatcher.sent, 1)
}

func TestQuoteService_ApproveQuoteOverrides(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	req := quoteRequest()
	req.PreferredDate = ""
	req.PreferredTime = ""
	q, err := e.quotes.SubmitQuote(ctx, client, req)
	require.NoError(t, err)

	_, err = e.quotes.ApproveQuote(ctx, admin, q.ID, ApproveRequest{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.quotes.ApproveQuote(ctx, admin, q.ID, ApproveRequest{ServiceDate: "2001-01-01", ServiceTime: "10:00"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	price := 99.0
	b, err := e.quotes.ApproveQuote(ctx, admin, q.ID, ApproveRequest{
		ServiceDate:     "2030-07-01",
		ServiceTime:     "14:30",
		DurationMinutes: 90,
		Address:         "Gran Via 2",
		FinalPrice:      &price,
	})
	require.NoError(t, err)
	assert.Equal(t, "2030-07-01", b.ServiceDate)
	assert.Equal(t, "14:30", b.ServiceTime)
	assert.Equal(t, 90, b.DurationMinutes)
	assert.Equal(t, "Gran Via 2", b.Address)
	assert.Equal(t, 99.0, b.FinalPrice)
}

func TestQuoteService_RejectQuote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	q, err := e.quotes.SubmitQuote(ctx, client, quoteRequest())
	require.NoError(t, err)

	require.NoError(t, e.quotes.RejectQuote(ctx, admin, q.ID, "fully booked"))
	stored, err := e.db.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusRejected, stored.Status)

	require.Len(t, e.dispatcher.sent, 1)
	assert.Equal(t, models.TemplateQuoteRejected, e.dispatcher.sent[0].Template)
	assert.Equal(t, "fully booked", e.dispatcher.sent[0].Data["reason"])

	assert.ErrorIs(t, e.quotes.RejectQuote(ctx, admin, q.ID, ""), ErrInvalidState)
	_, err = e.quotes.ApproveQuote(ctx, admin, q.ID, ApproveRequest{})
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.ErrorIs(t, e.quotes.RejectQuote(ctx, admin, 9999, ""), ErrNotFound)
}

func TestQuoteService_Visibility(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	q, err := e.quotes.SubmitQuote(ctx, client, quoteRequest())
	require.NoError(t, err)

	other := models.Actor{ID: 7, Role: models.RoleClient}
	_, err = e.quotes.GetQuote(ctx, other, q.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	got, err := e.quotes.GetQuote(ctx, client, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, got.ID)

	mine, err := e.quotes.ListQuotes(ctx, other, "")
	require.NoError(t, err)
	assert.Empty(t, mine)

	all, err := e.quotes.ListQuotes(ctx, admin, models.QuoteStatusPending)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = e.quotes.ListQuotes(ctx, ana, "")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestQuoteService_Estimate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p, err := e.quotes.Estimate(ctx, "deep_cleaning", models.PropertyResidential, 1000, models.FrequencyWeekly)
	require.NoError(t, err)
	assert.Equal(t, 127.5, p.Total)

	_, err = e.quotes.Estimate(ctx, "deep_cleaning", models.PropertyResidential, -5, models.FrequencyOnce)
	assert.Equal(t, "invalid_input", Code(err))

	_, err = e.quotes.Estimate(ctx, "pool_cleaning", models.PropertyResidential, 100, models.FrequencyOnce)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
