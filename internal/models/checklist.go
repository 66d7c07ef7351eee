package models

import "time"

// ChecklistItem is template data keyed by service type and frequency.
// An empty Frequency applies to every frequency.
type ChecklistItem struct {
	ID          int64  `json:"id" yaml:"id"`
	ServiceType string `json:"service_type" yaml:"service_type"`
	Frequency   string `json:"frequency,omitempty" yaml:"frequency"`
	TextEN      string `json:"text_en" yaml:"text_en"`
	TextES      string `json:"text_es" yaml:"text_es"`
	Required    bool   `json:"required" yaml:"required"`
	SortOrder   int    `json:"sort_order" yaml:"sort_order"`
}

// AppliesTo reports whether the item belongs to the template for the pair.
func (i *ChecklistItem) AppliesTo(serviceType, frequency string) bool {
	return i.ServiceType == serviceType && (i.Frequency == "" || i.Frequency == frequency)
}

// ChecklistCompletion is one snapshot row per (booking, item).
type ChecklistCompletion struct {
	ID          int64      `json:"id"`
	BookingID   int64      `json:"booking_id"`
	ItemID      int64      `json:"item_id"`
	TextEN      string     `json:"text_en"`
	TextES      string     `json:"text_es"`
	Required    bool       `json:"required"`
	SortOrder   int        `json:"sort_order"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Rating      *int       `json:"rating,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// Text returns the item text in the requested language.
func (c *ChecklistCompletion) Text(lang string) string {
	if lang == LanguageES && c.TextES != "" {
		return c.TextES
	}
	return c.TextEN
}

type ChecklistProgress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Percentage int `json:"percentage"`
}

// ChecklistCounts aggregates a booking's completion rows.
type ChecklistCounts struct {
	Total             int
	Completed         int
	RequiredTotal     int
	RequiredCompleted int
}
