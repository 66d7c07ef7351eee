package models

import "time"

// PriceBreakdown is derived by the pricing engine and stored with its quote.
type PriceBreakdown struct {
	BasePrice     float64 `json:"base_price"`
	AreaCharge    float64 `json:"area_charge"`
	Subtotal      float64 `json:"subtotal"`
	DiscountRate  float64 `json:"discount_rate"`
	Discount      float64 `json:"discount"`
	Total         float64 `json:"total"`
	MarketAverage string  `json:"market_average"`
	IsCompetitive bool    `json:"is_competitive"`
}

type Quote struct {
	ID               int64          `json:"id"`
	RequesterID      int64          `json:"requester_id"`
	RequesterName    string         `json:"requester_name"`
	RequesterEmail   string         `json:"requester_email"`
	RequesterPhone   string         `json:"requester_phone"`
	Language         string         `json:"language"`
	ServiceType      string         `json:"service_type"`
	PropertyType     string         `json:"property_type"`
	Area             int            `json:"area"`
	Bedrooms         *int           `json:"bedrooms,omitempty"`
	Bathrooms        *int           `json:"bathrooms,omitempty"`
	Frequency        string         `json:"frequency"`
	PreferredDate    string         `json:"preferred_date,omitempty"`
	PreferredTime    string         `json:"preferred_time,omitempty"`
	Address          string         `json:"address"`
	ChecklistItemIDs []int64        `json:"checklist_item_ids"`
	Price            PriceBreakdown `json:"price"`
	Status           string         `json:"status"` // pending, approved, rejected, completed
	ClientNotes      string         `json:"client_notes"`
	ReviewedBy       int64          `json:"reviewed_by,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Version          int64          `json:"version"`
}

// IsTerminal reports whether the quote can no longer be reviewed.
func (q *Quote) IsTerminal() bool {
	return q.Status != QuoteStatusPending
}
