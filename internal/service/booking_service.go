package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"cleanops/internal/availability"
	"cleanops/internal/config"
	"cleanops/internal/domain"
	"cleanops/internal/events"
	"cleanops/internal/metrics"
	"cleanops/internal/models"
	"cleanops/internal/notify"

	"github.com/rs/zerolog"
)

// CompletionResult carries the completed booking and any soft warnings
// raised while closing it.
type CompletionResult struct {
	Booking  *models.Booking `json:"booking"`
	Warnings []string        `json:"warnings,omitempty"`
}

// ChecklistView is a booking's snapshot together with its progress.
type ChecklistView struct {
	Items    []*models.ChecklistCompletion `json:"items"`
	Progress models.ChecklistProgress      `json:"progress"`
}

// AvailabilityResult answers an availability probe.
type AvailabilityResult struct {
	Available bool              `json:"available"`
	Conflicts []*models.Booking `json:"conflicts,omitempty"`
}

const warnNoAfterPhotos = "no after photos were uploaded"

type BookingService struct {
	repo      domain.Repository
	checklist *ChecklistService
	location  domain.LocationProvider
	evidence  domain.EvidenceStore
	notify    notifier
	cfg       config.LifecycleConfig
	logger    *zerolog.Logger
	now       nowFunc
}

func NewBookingService(
	repo domain.Repository,
	location domain.LocationProvider,
	evidence domain.EvidenceStore,
	dispatcher domain.Dispatcher,
	eventBus domain.EventPublisher,
	cfg config.LifecycleConfig,
	logger *zerolog.Logger,
) *BookingService {
	if cfg.ChecklistGate == "" {
		cfg.ChecklistGate = config.GateRequired
	}
	return &BookingService{
		repo:      repo,
		checklist: NewChecklistService(repo),
		location:  location,
		evidence:  evidence,
		notify:    notifier{dispatcher: dispatcher, events: eventBus, logger: logger},
		cfg:       cfg,
		logger:    logger,
		now:       systemNow,
	}
}

func (s *BookingService) GetBooking(ctx context.Context, actor models.Actor, bookingID int64) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err)
	}
	if !canView(actor, b) {
		return nil, fmt.Errorf("%w: booking %d", ErrNotAuthorized, bookingID)
	}
	return b, nil
}

// ListBookings filters by status and date; non-admins only see their own bookings.
func (s *BookingService) ListBookings(ctx context.Context, actor models.Actor, status, date string) ([]*models.Booking, error) {
	all, err := s.repo.ListBookings(ctx, status, date)
	if err != nil {
		return nil, storeError(err)
	}
	if actor.IsAdmin() {
		return all, nil
	}
	out := make([]*models.Booking, 0, len(all))
	for _, b := range all {
		if canView(actor, b) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *BookingService) ListEmployeeSchedule(ctx context.Context, actor models.Actor, employeeID int64, date string) ([]*models.Booking, error) {
	if !actor.IsAdmin() && !(actor.Role == models.RoleEmployee && actor.ID == employeeID) {
		return nil, fmt.Errorf("%w: schedule of employee %d", ErrNotAuthorized, employeeID)
	}
	if err := validDate(date); err != nil {
		return nil, err
	}
	bookings, err := s.repo.ListEmployeeBookings(ctx, employeeID, date)
	return bookings, storeError(err)
}

// CheckAvailability probes an interval against the employee's current schedule.
// It is advisory; AssignEmployee re-checks inside its transaction.
func (s *BookingService) CheckAvailability(ctx context.Context, actor models.Actor, employeeID int64, date, start string, durationMinutes int) (*AvailabilityResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validDate(date); err != nil {
		return nil, err
	}
	existing, err := s.repo.ListEmployeeBookings(ctx, employeeID, date)
	if err != nil {
		return nil, storeError(err)
	}
	conflicts, err := availability.Conflicts(employeeID, date, start, durationMinutes, existing)
	if err != nil {
		return nil, invalidInput("%v", err)
	}
	return &AvailabilityResult{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

func (s *BookingService) AssignEmployee(ctx context.Context, actor models.Actor, bookingID, employeeID int64) (b *models.Booking, err error) {
	defer func() { observe("assign_employee", err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	b, err = s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err)
	}
	if b.Status != models.StatusConfirmed {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidState, b.ID, b.Status)
	}
	if b.IsAssignedTo(employeeID) {
		return b, nil
	}

	emp, err := s.repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, storeError(err)
	}
	if !emp.Active {
		return nil, fmt.Errorf("%w: employee %d is inactive", ErrEmployeeUnavailable, emp.ID)
	}
	if !emp.HasSkill(b.ServiceType) {
		return nil, fmt.Errorf("%w: employee %d does not offer %s", ErrEmployeeUnavailable, emp.ID, b.ServiceType)
	}

	if err := s.repo.AssignEmployeeWithLock(ctx, b.ID, b.Version, emp.ID); err != nil {
		err = storeError(err)
		if errors.Is(err, ErrEmployeeUnavailable) {
			metrics.IncAssignmentConflict()
			s.logger.Info().Int64("booking_id", b.ID).Int64("employee_id", emp.ID).Msg("assignment conflict")
		}
		return nil, err
	}
	b = s.reload(ctx, b, func(b *models.Booking) { b.EmployeeID = &emp.ID })

	s.logger.Info().Int64("booking_id", b.ID).Int64("employee_id", emp.ID).Int64("admin_id", actor.ID).Msg("employee assigned")
	s.notify.publish(events.EventEmployeeAssigned, bookingPayload(b, actor))
	s.notifyAssignment(ctx, b, emp)
	return b, nil
}

// notifyAssignment keys both messages on the post-assign version so a later
// reassignment back to the same employee is delivered again.
func (s *BookingService) notifyAssignment(ctx context.Context, b *models.Booking, emp *models.Employee) {
	dedup := fmt.Sprintf("%s:%d:%d:%d", models.TemplateEmployeeAssigned, b.ID, emp.ID, b.Version)
	if q, err := s.repo.GetQuote(ctx, b.QuoteID); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("load quote for notification")
	} else {
		_ = s.notify.send(ctx, &models.Notification{
			DedupKey:  dedup,
			Recipient: q.RequesterEmail,
			Template:  models.TemplateEmployeeAssigned,
			Language:  q.Language,
			Data: map[string]string{
				"client_name":   q.RequesterName,
				"employee_name": emp.Name,
				"booking_id":    strconv.FormatInt(b.ID, 10),
				"service_date":  b.ServiceDate,
				"service_time":  b.ServiceTime,
			},
		})
	}

	msg := &models.Notification{
		DedupKey:  fmt.Sprintf("%s:%d:%d:%d", models.TemplateNewAssignment, b.ID, emp.ID, b.Version),
		Channel:   models.ChannelEmail,
		Recipient: emp.Email,
		Template:  models.TemplateNewAssignment,
		Language:  emp.Language,
		Data: map[string]string{
			"booking_id":   strconv.FormatInt(b.ID, 10),
			"service_type": b.ServiceType,
			"service_date": b.ServiceDate,
			"service_time": b.ServiceTime,
			"address":      b.Address,
		},
	}
	if emp.TelegramChatID != 0 {
		msg.Channel = models.ChannelTelegram
		msg.Recipient = strconv.FormatInt(emp.TelegramChatID, 10)
	}
	if msg.Recipient == "" {
		return
	}
	_ = s.notify.send(ctx, msg)
}

func (s *BookingService) UnassignEmployee(ctx context.Context, actor models.Actor, bookingID int64) (b *models.Booking, err error) {
	defer func() { observe("unassign_employee", err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	b, err = s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err)
	}
	if !b.BlocksSchedule() {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidState, b.ID, b.Status)
	}
	if b.EmployeeID == nil {
		return b, nil
	}
	if err := s.repo.UnassignEmployee(ctx, b.ID, b.Version); err != nil {
		return nil, storeError(err)
	}
	previous := *b.EmployeeID
	b = s.reload(ctx, b, func(b *models.Booking) { b.EmployeeID = nil })

	s.logger.Info().Int64("booking_id", b.ID).Int64("employee_id", previous).Msg("employee unassigned")
	payload := bookingPayload(b, actor)
	payload.EmployeeID = previous
	s.notify.publish(events.EventEmployeeUnassigned, payload)
	return b, nil
}

// StartWork moves a confirmed booking to in_progress once the assigned
// employee's position is known.
func (s *BookingService) StartWork(ctx context.Context, actor models.Actor, bookingID int64) (b *models.Booking, err error) {
	defer func() { observe("start_work", err) }()

	b, err = s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err)
	}
	if err := requireAssignee(actor, b); err != nil {
		return nil, err
	}
	if b.Status != models.StatusConfirmed {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidState, b.ID, b.Status)
	}

	loc, err := s.captureLocation(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	at := s.now()
	if err := s.repo.StartBooking(ctx, b.ID, b.Version, *loc, at); err != nil {
		return nil, storeError(err)
	}
	b = s.reload(ctx, b, func(b *models.Booking) {
		b.Status = models.StatusInProgress
		b.StartLocation = loc
		b.StartedAt = &at
	})

	s.logger.Info().Int64("booking_id", b.ID).Int64("employee_id", actor.ID).Msg("work started")
	s.notify.publish(events.EventWorkStarted, bookingPayload(b, actor))
	return b, nil
}

// CompleteWork closes an in_progress booking. The checklist gate, the
// evidence rule and an end location must all hold first.
func (s *BookingService) CompleteWork(ctx context.Context, actor models.Actor, bookingID int64) (res *CompletionResult, err error) {
	defer func() { observe("complete_work", err) }()

	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err)
	}
	if err := requireAssignee(actor, b); err != nil {
		return nil, err
	}
	if b.Status != models.StatusInProgress {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidState, b.ID, b.Status)
	}
	if err := s.checklist.Gate(ctx, b.ID, s.cfg.ChecklistGate); err != nil {
		return nil, err
	}

	res = &CompletionResult{}
	photos, err := s.repo.CountEvidence(ctx, b.ID, models.PhaseAfter)
	if err != nil {
		return nil, storeError(err)
	}
	if photos == 0 {
		if s.cfg.RequireAfterPhotos {
			return nil, fmt.Errorf("%w: booking %d has no after photos", ErrEvidenceMissing, b.ID)
		}
		res.Warnings = append(res.Warnings, warnNoAfterPhotos)
		s.logger.Warn().Int64("booking_id", b.ID).Msg("completing without after photos")
	}

	loc, err := s.captureLocation(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	at := s.now()
	requiredOnly := s.cfg.ChecklistGate != config.GateAll
	if err := s.repo.CompleteBooking(ctx, b.ID, b.Version, requiredOnly, *loc, at); err != nil {
		return nil, storeError(err)
	}
	b = s.reload(ctx, b, func(b *models.Booking) {
		b.Status = models.StatusCompleted
		b.EndLocation = loc
		b.CompletedAt = &at
	})
	res.Booking = b

	s.logger.Info().Int64("booking_id", b.ID).Int64("employee_id", actor.ID).Msg("work completed")
	s.notify.publish(events.EventBookingCompleted, bookingPayload(b, actor))
	s.notifyCompleted(ctx, b, at.Format(models.DateLayout+" "+models.TimeLayout))
	return res, nil
}

func (s *BookingService) notifyCompleted(ctx context.Context, b *models.Booking, completedAt string) {
	q, err := s.repo.GetQuote(ctx, b.QuoteID)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("load quote for notification")
		return
	}
	_ = s.notify.send(ctx, &models.Notification{
		DedupKey:  notify.DedupKey(models.TemplateBookingCompleted, b.ID),
		Recipient: q.RequesterEmail,
		Template:  models.TemplateBookingCompleted,
		Language:  q.Language,
		Data: map[string]string{
			"client_name":  q.RequesterName,
			"booking_id":   strconv.FormatInt(b.ID, 10),
			"completed_at": completedAt,
			"total":        money(b.FinalPrice),
		},
	})
}

// CancelBooking is allowed while the booking is confirmed or in progress.
func (s *BookingService) CancelBooking(ctx context.Context, actor models.Actor, bookingID int64) (b *models.Booking, err error) {
	defer func() { observe("cancel_booking", err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	b, err = s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err)
	}
	if !b.BlocksSchedule() {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidState, b.ID, b.Status)
	}
	if err := s.repo.CancelBooking(ctx, b.ID, b.Version); err != nil {
		return nil, storeError(err)
	}
	b = s.reload(ctx, b, func(b *models.Booking) { b.Status = models.StatusCancelled })

	s.logger.Info().Int64("booking_id", b.ID).Int64("admin_id", actor.ID).Msg("booking cancelled")
	s.notify.publish(events.EventBookingCancelled, bookingPayload(b, actor))
	return b, nil
}

func (s *BookingService) MarkPaid(ctx context.Context, actor models.Actor, bookingID int64) (b *models.Booking, err error) {
	defer func() { observe("mark_paid", err) }()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	b, err = s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err)
	}
	if b.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidState, b.ID, b.Status)
	}
	if b.PaymentCompleted {
		return b, nil
	}
	if err := s.repo.MarkBookingPaid(ctx, b.ID, b.Version); err != nil {
		return nil, storeError(err)
	}
	b = s.reload(ctx, b, func(b *models.Booking) { b.PaymentCompleted = true })
	s.notify.publish(events.EventBookingPaid, bookingPayload(b, actor))
	return b, nil
}

func (s *BookingService) UpdateEmployeeNotes(ctx context.Context, actor models.Actor, bookingID int64, notes string) (b *models.Booking, err error) {
	defer func() { observe("update_notes", err) }()

	b, err = s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err)
	}
	if err := requireAssignee(actor, b); err != nil {
		return nil, err
	}
	if b.Status == models.StatusCancelled {
		return nil, fmt.Errorf("%w: booking %d is cancelled", ErrInvalidState, b.ID)
	}
	if err := s.repo.UpdateEmployeeNotes(ctx, b.ID, b.Version, notes); err != nil {
		return nil, storeError(err)
	}
	return s.reload(ctx, b, func(b *models.Booking) { b.EmployeeNotes = notes }), nil
}

func (s *BookingService) GetChecklist(ctx context.Context, actor models.Actor, bookingID int64) (*ChecklistView, error) {
	if _, err := s.GetBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	items, err := s.repo.GetBookingChecklist(ctx, bookingID)
	if err != nil {
		return nil, storeError(err)
	}
	progress, err := s.checklist.Progress(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return &ChecklistView{Items: items, Progress: progress}, nil
}

// ToggleChecklistItem is limited to the assigned employee while work is in progress.
func (s *BookingService) ToggleChecklistItem(ctx context.Context, actor models.Actor, bookingID, completionID int64, completed bool) (c *models.ChecklistCompletion, err error) {
	defer func() { observe("toggle_checklist", err) }()

	if err := s.checklistGuard(ctx, actor, bookingID, completionID); err != nil {
		return nil, err
	}
	return s.checklist.Toggle(ctx, completionID, completed)
}

func (s *BookingService) RateChecklistItem(ctx context.Context, actor models.Actor, bookingID, completionID int64, rating int, notes *string) (c *models.ChecklistCompletion, err error) {
	defer func() { observe("rate_checklist", err) }()

	if err := s.checklistGuard(ctx, actor, bookingID, completionID); err != nil {
		return nil, err
	}
	return s.checklist.Rate(ctx, completionID, rating, notes)
}

func (s *BookingService) checklistGuard(ctx context.Context, actor models.Actor, bookingID, completionID int64) error {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return storeError(err)
	}
	if err := requireAssignee(actor, b); err != nil {
		return err
	}
	if b.Status != models.StatusInProgress {
		return fmt.Errorf("%w: booking %d is %s", ErrInvalidState, b.ID, b.Status)
	}
	c, err := s.repo.GetChecklistCompletion(ctx, completionID)
	if err != nil {
		return storeError(err)
	}
	if c.BookingID != b.ID {
		return fmt.Errorf("%w: checklist item %d belongs to another booking", ErrNotFound, completionID)
	}
	return nil
}

// UploadEvidence stores a before/after photo. The upload is bounded by the
// configured timeout; the blob is removed again if it cannot be recorded.
func (s *BookingService) UploadEvidence(ctx context.Context, actor models.Actor, bookingID int64, phase, filename, contentType string, data io.Reader) (e *models.Evidence, err error) {
	defer func() { observe("upload_evidence", err) }()

	if phase != models.PhaseBefore && phase != models.PhaseAfter {
		return nil, invalidInput("phase must be %q or %q", models.PhaseBefore, models.PhaseAfter)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, invalidInput("content type %q is not an image", contentType)
	}
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, storeError(err)
	}
	if !actor.IsAdmin() {
		if err := requireAssignee(actor, b); err != nil {
			return nil, err
		}
	}
	if !b.BlocksSchedule() {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidState, b.ID, b.Status)
	}
	if s.evidence == nil {
		return nil, fmt.Errorf("%w: evidence storage is not configured", ErrUploadFailed)
	}

	uploadCtx := ctx
	if s.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, s.cfg.UploadTimeout)
		defer cancel()
	}
	name := fmt.Sprintf("booking-%d-%s%s", b.ID, phase, path.Ext(filename))
	storagePath, size, err := s.evidence.Upload(uploadCtx, name, contentType, data)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Str("phase", phase).Msg("evidence upload failed")
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	e = &models.Evidence{
		BookingID:   b.ID,
		Phase:       phase,
		URL:         s.evidence.URL(storagePath),
		ContentType: contentType,
		Size:        size,
		UploadedBy:  actor.ID,
	}
	if err := s.repo.CreateEvidence(ctx, e); err != nil {
		if delErr := s.evidence.Delete(context.WithoutCancel(ctx), storagePath); delErr != nil {
			s.logger.Warn().Err(delErr).Str("path", storagePath).Msg("cleanup orphaned evidence")
		}
		return nil, storeError(err)
	}
	s.logger.Info().Int64("booking_id", b.ID).Str("phase", phase).Int64("size", size).Msg("evidence uploaded")
	return e, nil
}

func (s *BookingService) ListEvidence(ctx context.Context, actor models.Actor, bookingID int64) ([]*models.Evidence, error) {
	if _, err := s.GetBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListEvidence(ctx, bookingID)
	return list, storeError(err)
}

func (s *BookingService) captureLocation(ctx context.Context, employeeID int64) (*models.Location, error) {
	if s.location == nil {
		return nil, fmt.Errorf("%w: no location provider", ErrLocationUnavailable)
	}
	if s.cfg.LocationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LocationTimeout)
		defer cancel()
	}
	loc, err := s.location.Capture(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}
	if loc == nil {
		return nil, fmt.Errorf("%w: empty fix", ErrLocationUnavailable)
	}
	return loc, nil
}

// reload re-reads b after a committed transition. When the read fails the
// local copy is patched with apply instead.
func (s *BookingService) reload(ctx context.Context, b *models.Booking, apply func(*models.Booking)) *models.Booking {
	fresh, err := s.repo.GetBooking(ctx, b.ID)
	if err == nil {
		return fresh
	}
	s.logger.Warn().Err(err).Int64("booking_id", b.ID).Msg("reload booking")
	apply(b)
	b.Version++
	return b
}

func validDate(date string) error {
	if _, err := parseDate(date); err != nil {
		return invalidInput("date %q must be YYYY-MM-DD", date)
	}
	return nil
}
