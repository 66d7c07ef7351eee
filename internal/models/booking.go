package models

import "time"

// Location is a single GPS fix.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

type Booking struct {
	ID               int64      `json:"id"`
	QuoteID          int64      `json:"quote_id"`
	RequesterID      int64      `json:"requester_id"`
	ServiceType      string     `json:"service_type"`
	ServiceDate      string     `json:"service_date"` // YYYY-MM-DD
	ServiceTime      string     `json:"service_time"` // HH:MM
	DurationMinutes  int        `json:"duration_minutes"`
	EmployeeID       *int64     `json:"employee_id,omitempty"`
	Status           string     `json:"status"` // confirmed, in_progress, completed, cancelled
	FinalPrice       float64    `json:"final_price"`
	PaymentCompleted bool       `json:"payment_completed"`
	EmployeeNotes    string     `json:"employee_notes"`
	Address          string     `json:"address"`
	StartLocation    *Location  `json:"start_location,omitempty"`
	EndLocation      *Location  `json:"end_location,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	InvoiceRef       string     `json:"invoice_ref,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Version          int64      `json:"version"`
}

// BlocksSchedule reports whether the booking occupies its employee's time.
func (b *Booking) BlocksSchedule() bool {
	return b.Status == StatusConfirmed || b.Status == StatusInProgress
}

// IsAssignedTo reports whether employeeID is the booking's assignee.
func (b *Booking) IsAssignedTo(employeeID int64) bool {
	return b.EmployeeID != nil && *b.EmployeeID == employeeID
}

// Duration returns the estimated duration, falling back to the default.
func (b *Booking) Duration() int {
	if b.DurationMinutes <= 0 {
		return DefaultDurationMinutes
	}
	return b.DurationMinutes
}
