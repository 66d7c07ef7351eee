package availability

import (
	"testing"

	"cleanops/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func booking(id, employeeID int64, date, start string, duration int, status string) *models.Booking {
	return &models.Booking{
		ID:              id,
		EmployeeID:      &employeeID,
		ServiceDate:     date,
		ServiceTime:     start,
		DurationMinutes: duration,
		Status:          status,
	}
}

func TestIsAvailable(t *testing.T) {
	existing := []*models.Booking{
		booking(1, 1, "2024-01-10", "09:00", 120, models.StatusConfirmed),
	}

	assert.False(t, IsAvailable(1, "2024-01-10", "10:30", 60, existing), "10:30-11:30 overlaps 09:00-11:00")
	assert.True(t, IsAvailable(1, "2024-01-10", "11:00", 60, existing), "adjacent slot is free")
	assert.False(t, IsAvailable(1, "2024-01-10", "08:00", 61, existing))
	assert.True(t, IsAvailable(1, "2024-01-10", "08:00", 60, existing))
	assert.False(t, IsAvailable(1, "2024-01-10", "09:30", 15, existing), "contained slot")
	assert.False(t, IsAvailable(1, "2024-01-10", "08:00", 240, existing), "containing slot")
}

func TestIsAvailable_Filters(t *testing.T) {
	existing := []*models.Booking{
		booking(1, 2, "2024-01-10", "09:00", 120, models.StatusConfirmed),
		booking(2, 1, "2024-01-11", "09:00", 120, models.StatusInProgress),
		booking(3, 1, "2024-01-10", "09:00", 120, models.StatusCancelled),
		booking(4, 1, "2024-01-10", "09:00", 120, models.StatusCompleted),
		{ID: 5, ServiceDate: "2024-01-10", ServiceTime: "09:00", Status: models.StatusConfirmed},
	}

	assert.True(t, IsAvailable(1, "2024-01-10", "09:00", 60, existing))
	assert.True(t, IsAvailable(1, "2024-01-10", "09:00", 60, nil))
}

func TestIsAvailable_DefaultDuration(t *testing.T) {
	existing := []*models.Booking{
		booking(1, 1, "2024-01-10", "09:00", 0, models.StatusInProgress),
	}

	assert.False(t, IsAvailable(1, "2024-01-10", "10:59", 30, existing))
	assert.True(t, IsAvailable(1, "2024-01-10", "11:00", 30, existing))
	// candidate without duration runs 07:00-09:00
	assert.True(t, IsAvailable(1, "2024-01-10", "07:00", 0, existing))
	assert.False(t, IsAvailable(1, "2024-01-10", "07:01", 0, existing))
}

func TestIsAvailable_InvalidTimes(t *testing.T) {
	existing := []*models.Booking{
		booking(1, 1, "2024-01-10", "soon", 60, models.StatusConfirmed),
	}

	assert.False(t, IsAvailable(1, "2024-01-10", "18:00", 60, existing))
	assert.False(t, IsAvailable(1, "2024-01-10", "25:99", 60, nil))
}

func TestConflicts(t *testing.T) {
	a := booking(1, 1, "2024-01-10", "09:00", 60, models.StatusConfirmed)
	b := booking(2, 1, "2024-01-10", "10:00", 60, models.StatusConfirmed)
	c := booking(3, 1, "2024-01-10", "13:00", 60, models.StatusConfirmed)

	got, err := Conflicts(1, "2024-01-10", "09:30", 60, []*models.Booking{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []*models.Booking{a, b}, got)

	_, err = Conflicts(1, "2024-01-10", "nope", 60, nil)
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	m, err = ParseClock("23:59:00")
	require.NoError(t, err)
	assert.Equal(t, 1439, m)

	_, err = ParseClock("9am")
	assert.Error(t, err)
}
