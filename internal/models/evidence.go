package models

import "time"

// Evidence is a photo attached to a booking.
type Evidence struct {
	ID          int64     `json:"id"`
	BookingID   int64     `json:"booking_id"`
	Phase       string    `json:"phase"` // before, after
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedBy  int64     `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// LocationPing is the last position reported by an employee device.
type LocationPing struct {
	EmployeeID int64     `json:"employee_id"`
	Location   Location  `json:"location"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Actor is the resolved caller of a lifecycle operation.
type Actor struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
