package models

import "time"

type Employee struct {
	ID             int64     `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Email          string    `json:"email" yaml:"email"`
	Phone          string    `json:"phone" yaml:"phone"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id"`
	Language       string    `json:"language" yaml:"language"`
	HourlyRate     float64   `json:"hourly_rate" yaml:"hourly_rate"`
	Skills         []string  `json:"skills" yaml:"skills"`
	Active         bool      `json:"active" yaml:"active"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"-"`
}

// HasSkill reports whether the employee can perform serviceType.
func (e *Employee) HasSkill(serviceType string) bool {
	for _, s := range e.Skills {
		if s == serviceType {
			return true
		}
	}
	return false
}
