// Package availability decides whether an employee is free for a time slot.
package availability

import (
	"fmt"
	"strings"
	"time"

	"cleanops/internal/models"
)

// ParseClock converts "HH:MM" (or "HH:MM:SS") to minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	layout := models.TimeLayout
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect.
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// Conflicts returns the existing bookings of employeeID on date that overlap
// the candidate interval. Only confirmed and in-progress bookings block.
// A blocking booking whose start time cannot be parsed counts as a conflict.
func Conflicts(employeeID int64, date, start string, durationMinutes int, existing []*models.Booking) ([]*models.Booking, error) {
	candStart, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		durationMinutes = models.DefaultDurationMinutes
	}
	candEnd := candStart + durationMinutes

	var conflicts []*models.Booking
	for _, b := range existing {
		if b == nil || !b.IsAssignedTo(employeeID) || b.ServiceDate != date || !b.BlocksSchedule() {
			continue
		}
		bStart, err := ParseClock(b.ServiceTime)
		if err != nil {
			conflicts = append(conflicts, b)
			continue
		}
		if Overlaps(candStart, candEnd, bStart, bStart+b.Duration()) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}

// IsAvailable reports whether the employee is free for the candidate slot.
// An unparseable candidate start time is never available.
func IsAvailable(employeeID int64, date, start string, durationMinutes int, existing []*models.Booking) bool {
	conflicts, err := Conflicts(employeeID, date, start, durationMinutes, existing)
	return err == nil && len(conflicts) == 0
}
