package models

// Quote statuses.
const (
	QuoteStatusPending   = "pending"
	QuoteStatusApproved  = "approved"
	QuoteStatusRejected  = "rejected"
	QuoteStatusCompleted = "completed"
)

// Booking statuses.
const (
	StatusConfirmed  = "confirmed"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	PropertyResidential = "residential"
	PropertyCommercial  = "commercial"
)

const (
	FrequencyOnce     = "once"
	FrequencyWeekly   = "weekly"
	FrequencyBiweekly = "biweekly"
	FrequencyMonthly  = "monthly"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
	RoleClient   = "client"
)

// Evidence phases.
const (
	PhaseBefore = "before"
	PhaseAfter  = "after"
)

const (
	LanguageEN = "en"
	LanguageES = "es"
)

// Outbox statuses for notifications.
const (
	NotificationPending = "pending"
	NotificationRetry   = "retry"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// Notification templates.
const (
	TemplateQuoteApproved    = "quote_approved"
	TemplateQuoteRejected    = "quote_rejected"
	TemplateEmployeeAssigned = "employee_assigned"
	TemplateNewAssignment    = "new_assignment"
	TemplateBookingCompleted = "booking_completed"
)

const (
	// DefaultDurationMinutes is used when a booking has no estimated duration.
	DefaultDurationMinutes = 120

	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// IsValidFrequency reports whether f is a known recurrence.
func IsValidFrequency(f string) bool {
	switch f {
	case FrequencyOnce, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

func IsValidPropertyType(p string) bool {
	return p == PropertyResidential || p == PropertyCommercial
}
