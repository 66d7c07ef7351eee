package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cleanops/internal/availability"
	"cleanops/internal/config"
	"cleanops/internal/database"
	"cleanops/internal/domain"
	"cleanops/internal/events"
	"cleanops/internal/models"
	"cleanops/internal/notify"
	"cleanops/internal/pricing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = validator.New()

// QuoteRequest is what a client submits to get an estimate booked for review.
type QuoteRequest struct {
	RequesterName    string
	RequesterEmail   string
	RequesterPhone   string
	Language         string
	ServiceType      string
	PropertyType     string
	Area             int
	Bedrooms         *int
	Bathrooms        *int
	Frequency        string
	PreferredDate    string
	PreferredTime    string
	Address          string
	ChecklistItemIDs []int64
	ClientNotes      string
}

// ApproveRequest schedules the booking created from a quote. Empty fields fall
// back to the quote's preferences and catalog defaults.
type ApproveRequest struct {
	ServiceDate     string
	ServiceTime     string
	DurationMinutes int
	Address         string
	FinalPrice      *float64
}

type QuoteService struct {
	repo   domain.Repository
	notify notifier
	cfg    config.LifecycleConfig
	logger *zerolog.Logger
	now    nowFunc
}

func NewQuoteService(repo domain.Repository, dispatcher domain.Dispatcher, eventBus domain.EventPublisher, cfg config.LifecycleConfig, logger *zerolog.Logger) *QuoteService {
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = models.DefaultDurationMinutes
	}
	return &QuoteService{
		repo:   repo,
		notify: notifier{dispatcher: dispatcher, events: eventBus, logger: logger},
		cfg:    cfg,
		logger: logger,
		now:    systemNow,
	}
}

// Estimate prices a service without storing anything.
func (s *QuoteService) Estimate(ctx context.Context, serviceType, propertyType string, area int, frequency string) (models.PriceBreakdown, error) {
	entry, err := s.activeService(ctx, serviceType)
	if err != nil {
		return models.PriceBreakdown{}, err
	}
	return pricing.Estimate(pricing.Params{
		ServiceType:      serviceType,
		PropertyType:     propertyType,
		Area:             area,
		Frequency:        frequency,
		BasePrice:        entry.BasePrice,
		PricePerAreaUnit: entry.PricePerAreaUnit,
	})
}

func (s *QuoteService) SubmitQuote(ctx context.Context, actor models.Actor, req QuoteRequest) (q *models.Quote, err error) {
	defer func() { observe("submit_quote", err) }()

	if actor.Role != models.RoleClient && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only clients submit quotes", ErrNotAuthorized)
	}
	if err := s.validateRequest(ctx, &req); err != nil {
		return nil, err
	}

	price, err := s.Estimate(ctx, req.ServiceType, req.PropertyType, req.Area, req.Frequency)
	if err != nil {
		return nil, err
	}

	q = &models.Quote{
		RequesterID:      actor.ID,
		RequesterName:    req.RequesterName,
		RequesterEmail:   req.RequesterEmail,
		RequesterPhone:   req.RequesterPhone,
		Language:         req.Language,
		ServiceType:      req.ServiceType,
		PropertyType:     req.PropertyType,
		Area:             req.Area,
		Bedrooms:         req.Bedrooms,
		Bathrooms:        req.Bathrooms,
		Frequency:        req.Frequency,
		PreferredDate:    req.PreferredDate,
		PreferredTime:    req.PreferredTime,
		Address:          req.Address,
		ChecklistItemIDs: req.ChecklistItemIDs,
		Price:            price,
		Status:           models.QuoteStatusPending,
		ClientNotes:      req.ClientNotes,
	}
	if err := s.repo.CreateQuote(ctx, q); err != nil {
		return nil, storeError(err)
	}

	s.logger.Info().Int64("quote_id", q.ID).Str("service_type", q.ServiceType).Float64("total", q.Price.Total).Msg("quote submitted")
	s.notify.publish(events.EventQuoteSubmitted, quotePayload(q, actor))
	return q, nil
}

func (s *QuoteService) validateRequest(ctx context.Context, req *QuoteRequest) error {
	if req.ServiceType == "" {
		return invalidInput("service type is required")
	}
	if req.Area <= 0 {
		return invalidInput("area must be positive, got %d", req.Area)
	}
	if len(req.ChecklistItemIDs) == 0 {
		return invalidInput("at least one checklist item must be selected")
	}
	if !models.IsValidPropertyType(req.PropertyType) {
		return invalidInput("unknown property type %q", req.PropertyType)
	}
	if !models.IsValidFrequency(req.Frequency) {
		return invalidInput("unknown frequency %q", req.Frequency)
	}
	if req.PropertyType == models.PropertyCommercial && (req.Bedrooms != nil || req.Bathrooms != nil) {
		return invalidInput("bedroom and bathroom counts apply to residential properties only")
	}
	if (req.Bedrooms != nil && *req.Bedrooms < 0) || (req.Bathrooms != nil && *req.Bathrooms < 0) {
		return invalidInput("room counts must not be negative")
	}
	if req.RequesterEmail == "" {
		return invalidInput("requester email is required")
	}
	if err := validate.Var(req.RequesterEmail, "email"); err != nil {
		return invalidInput("requester email %q is malformed", req.RequesterEmail)
	}
	switch req.Language {
	case "":
		req.Language = models.LanguageEN
	case models.LanguageEN, models.LanguageES:
	default:
		return invalidInput("unsupported language %q", req.Language)
	}
	if req.PreferredDate != "" {
		if _, err := time.Parse(models.DateLayout, req.PreferredDate); err != nil {
			return invalidInput("preferred date %q must be YYYY-MM-DD", req.PreferredDate)
		}
	}
	if req.PreferredTime != "" {
		if _, err := availability.ParseClock(req.PreferredTime); err != nil {
			return invalidInput("preferred time %q must be HH:MM", req.PreferredTime)
		}
	}

	template, err := s.repo.GetChecklistTemplate(ctx, req.ServiceType, req.Frequency)
	if err != nil {
		return storeError(err)
	}
	allowed := make(map[int64]bool, len(template))
	for _, item := range template {
		allowed[item.ID] = true
	}
	seen := make(map[int64]bool, len(req.ChecklistItemIDs))
	for _, id := range req.ChecklistItemIDs {
		if !allowed[id] {
			return invalidInput("checklist item %d does not belong to %s/%s", id, req.ServiceType, req.Frequency)
		}
		if seen[id] {
			return invalidInput("checklist item %d selected twice", id)
		}
		seen[id] = true
	}
	return nil
}

func (s *QuoteService) activeService(ctx context.Context, serviceType string) (*models.ServiceCatalogEntry, error) {
	entry, err := s.repo.GetServiceEntry(ctx, serviceType)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, invalidInput("unknown service type %q", serviceType)
		}
		return nil, err
	}
	if !entry.Active {
		return nil, invalidInput("service type %q is not offered", serviceType)
	}
	return entry, nil
}

// ApproveQuote moves a pending quote to approved and creates its confirmed
// booking with the checklist snapshot in the same transaction.
func (s *QuoteService) ApproveQuote(ctx context.Context, actor models.Actor, quoteID int64, req ApproveRequest) (b *models.Booking, err error) {
	defer func() { observe("approve_quote", err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	q, err := s.repo.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, storeError(err)
	}
	if q.Status != models.QuoteStatusPending {
		return nil, fmt.Errorf("%w: quote %d is %s", ErrInvalidState, q.ID, q.Status)
	}

	b, err = s.schedule(ctx, q, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ApproveQuote(ctx, q.ID, q.Version, actor.ID, b, q.ChecklistItemIDs); err != nil {
		return nil, storeError(err)
	}
	q.Status = models.QuoteStatusApproved

	s.logger.Info().Int64("quote_id", q.ID).Int64("booking_id", b.ID).Int64("admin_id", actor.ID).Msg("quote approved")
	s.notify.publish(events.EventQuoteApproved, bookingPayload(b, actor))
	_ = s.notify.send(ctx, &models.Notification{
		DedupKey:  notify.DedupKey(models.TemplateQuoteApproved, q.ID),
		Recipient: q.RequesterEmail,
		Template:  models.TemplateQuoteApproved,
		Language:  q.Language,
		Data: map[string]string{
			"client_name":  q.RequesterName,
			"quote_id":     strconv.FormatInt(q.ID, 10),
			"booking_id":   strconv.FormatInt(b.ID, 10),
			"service_date": b.ServiceDate,
			"service_time": b.ServiceTime,
			"total":        money(b.FinalPrice),
		},
	})
	return b, nil
}

func (s *QuoteService) schedule(ctx context.Context, q *models.Quote, req ApproveRequest) (*models.Booking, error) {
	date := firstNonEmpty(req.ServiceDate, q.PreferredDate)
	if date == "" {
		return nil, invalidInput("service date is required")
	}
	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return nil, invalidInput("service date %q must be YYYY-MM-DD", date)
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(today) {
		return nil, invalidInput("service date %s is in the past", date)
	}

	start := firstNonEmpty(req.ServiceTime, q.PreferredTime)
	if start == "" {
		return nil, invalidInput("service time is required")
	}
	if _, err := availability.ParseClock(start); err != nil {
		return nil, invalidInput("service time %q must be HH:MM", start)
	}

	duration := req.DurationMinutes
	if duration < 0 {
		return nil, invalidInput("duration must not be negative")
	}
	if duration == 0 {
		duration = s.cfg.DefaultDurationMinutes
		if entry, err := s.repo.GetServiceEntry(ctx, q.ServiceType); err == nil && entry.DefaultDurationMinutes > 0 {
			duration = entry.DefaultDurationMinutes
		}
	}

	price := q.Price.Total
	if req.FinalPrice != nil {
		if *req.FinalPrice < 0 {
			return nil, invalidInput("final price must not be negative")
		}
		price = *req.FinalPrice
	}

	return &models.Booking{
		RequesterID:     q.RequesterID,
		ServiceType:     q.ServiceType,
		ServiceDate:     date,
		ServiceTime:     start,
		DurationMinutes: duration,
		Status:          models.StatusConfirmed,
		FinalPrice:      price,
		Address:         firstNonEmpty(req.Address, q.Address),
	}, nil
}

func (s *QuoteService) RejectQuote(ctx context.Context, actor models.Actor, quoteID int64, reason string) (err error) {
	defer func() { observe("reject_quote", err) }()

	if err := requireAdmin(actor); err != nil {
		return err
	}
	q, err := s.repo.GetQuote(ctx, quoteID)
	if err != nil {
		return storeError(err)
	}
	if q.Status != models.QuoteStatusPending {
		return fmt.Errorf("%w: quote %d is %s", ErrInvalidState, q.ID, q.Status)
	}
	if err := s.repo.RejectQuote(ctx, q.ID, q.Version, actor.ID); err != nil {
		return storeError(err)
	}
	q.Status = models.QuoteStatusRejected

	s.logger.Info().Int64("quote_id", q.ID).Int64("admin_id", actor.ID).Msg("quote rejected")
	s.notify.publish(events.EventQuoteRejected, quotePayload(q, actor))
	_ = s.notify.send(ctx, &models.Notification{
		DedupKey:  notify.DedupKey(models.TemplateQuoteRejected, q.ID),
		Recipient: q.RequesterEmail,
		Template:  models.TemplateQuoteRejected,
		Language:  q.Language,
		Data: map[string]string{
			"client_name": q.RequesterName,
			"quote_id":    strconv.FormatInt(q.ID, 10),
			"reason":      reason,
		},
	})
	return nil
}

func (s *QuoteService) GetQuote(ctx context.Context, actor models.Actor, quoteID int64) (*models.Quote, error) {
	q, err := s.repo.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, storeError(err)
	}
	if !actor.IsAdmin() && q.RequesterID != actor.ID {
		return nil, fmt.Errorf("%w: quote %d", ErrNotAuthorized, quoteID)
	}
	return q, nil
}

// ListQuotes returns every quote for admins and only their own for clients.
func (s *QuoteService) ListQuotes(ctx context.Context, actor models.Actor, status string) ([]*models.Quote, error) {
	var requester int64
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleClient:
		requester = actor.ID
	default:
		return nil, fmt.Errorf("%w: quotes are not visible to %s", ErrNotAuthorized, actor.Role)
	}
	quotes, err := s.repo.ListQuotes(ctx, status, requester)
	return quotes, storeError(err)
}

func (s *QuoteService) ListServices(ctx context.Context) ([]*models.ServiceCatalogEntry, error) {
	services, err := s.repo.ListServices(ctx)
	return services, storeError(err)
}

func (s *QuoteService) ChecklistTemplate(ctx context.Context, serviceType, frequency string) ([]*models.ChecklistItem, error) {
	if !models.IsValidFrequency(frequency) {
		return nil, invalidInput("unknown frequency %q", frequency)
	}
	items, err := s.repo.GetChecklistTemplate(ctx, serviceType, frequency)
	return items, storeError(err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
