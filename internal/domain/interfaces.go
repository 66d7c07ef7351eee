package domain

import (
	"context"
	"io"
	"time"

	"cleanops/internal/models"
)

type CatalogRepository interface {
	GetServiceEntry(ctx context.Context, serviceType string) (*models.ServiceCatalogEntry, error)
	ListServices(ctx context.Context) ([]*models.ServiceCatalogEntry, error)
	GetChecklistTemplate(ctx context.Context, serviceType, frequency string) ([]*models.ChecklistItem, error)
	GetEmployee(ctx context.Context, id int64) (*models.Employee, error)
	ListEmployees(ctx context.Context, activeOnly bool) ([]*models.Employee, error)
}

type QuoteRepository interface {
	CreateQuote(ctx context.Context, q *models.Quote) error
	GetQuote(ctx context.Context, id int64) (*models.Quote, error)
	ListQuotes(ctx context.Context, status string, requesterID int64) ([]*models.Quote, error)
	RejectQuote(ctx context.Context, id, fromVersion, reviewerID int64) error
	ApproveQuote(ctx context.Context, quoteID, fromVersion, reviewerID int64, booking *models.Booking, itemIDs []int64) error
}

type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, status, date string) ([]*models.Booking, error)
	ListEmployeeBookings(ctx context.Context, employeeID int64, date string) ([]*models.Booking, error)
	AssignEmployeeWithLock(ctx context.Context, bookingID, fromVersion, employeeID int64) error
	UnassignEmployee(ctx context.Context, bookingID, fromVersion int64) error
	StartBooking(ctx context.Context, bookingID, fromVersion int64, loc models.Location, at time.Time) error
	CompleteBooking(ctx context.Context, bookingID, fromVersion int64, requiredOnly bool, loc models.Location, at time.Time) error
	CancelBooking(ctx context.Context, bookingID, fromVersion int64) error
	MarkBookingPaid(ctx context.Context, bookingID, fromVersion int64) error
	UpdateEmployeeNotes(ctx context.Context, bookingID, fromVersion int64, notes string) error
	SetInvoiceRef(ctx context.Context, bookingID int64, ref string) error
}

type ChecklistRepository interface {
	InitializeChecklist(ctx context.Context, bookingID int64, itemIDs []int64) (int64, error)
	GetBookingChecklist(ctx context.Context, bookingID int64) ([]*models.ChecklistCompletion, error)
	GetChecklistCompletion(ctx context.Context, id int64) (*models.ChecklistCompletion, error)
	SetCompletionState(ctx context.Context, id int64, completed bool, at time.Time) error
	RateCompletion(ctx context.Context, id int64, rating int, notes *string) error
	GetChecklistCounts(ctx context.Context, bookingID int64) (models.ChecklistCounts, error)
}

type EvidenceRepository interface {
	CreateEvidence(ctx context.Context, e *models.Evidence) error
	ListEvidence(ctx context.Context, bookingID int64) ([]*models.Evidence, error)
	CountEvidence(ctx context.Context, bookingID int64, phase string) (int, error)
}

// Repository is the persistence collaborator used by the lifecycle services.
type Repository interface {
	CatalogRepository
	QuoteRepository
	BookingRepository
	ChecklistRepository
	EvidenceRepository
}

type OutboxRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) (bool, error)
	GetNotification(ctx context.Context, id int64) (*models.Notification, error)
	GetPendingNotifications(ctx context.Context, limit int) ([]models.Notification, error)
	UpdateNotificationStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// FieldStateRepository keeps short-lived employee device state.
type FieldStateRepository interface {
	SavePing(ctx context.Context, ping *models.LocationPing) error
	LatestPing(ctx context.Context, employeeID int64) (*models.LocationPing, error)
	ClearPing(ctx context.Context, employeeID int64) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Dispatcher queues notifications for lifecycle transitions.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *models.Notification) error
}

// OutboxQueue hands persisted notifications to the delivery worker.
type OutboxQueue interface {
	Enqueue(ctx context.Context, notificationID int64) error
}

// Notifier delivers one rendered message over a single channel.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

type LocationProvider interface {
	Capture(ctx context.Context, employeeID int64) (*models.Location, error)
}

// EvidenceStore keeps photo blobs. Upload returns the storage path.
type EvidenceStore interface {
	Upload(ctx context.Context, filename, contentType string, data io.Reader) (string, int64, error)
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storagePath string) error
	URL(storagePath string) string
}

type Invoicer interface {
	Generate(ctx context.Context, booking *models.Booking, quote *models.Quote) (string, error)
}
