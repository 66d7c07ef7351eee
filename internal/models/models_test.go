package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingHelpers(t *testing.T) {
	emp := int64(7)
	b := &Booking{Status: StatusConfirmed, EmployeeID: &emp}

	assert.True(t, b.BlocksSchedule())
	assert.True(t, b.IsAssignedTo(7))
	assert.False(t, b.IsAssignedTo(8))
	assert.Equal(t, DefaultDurationMinutes, b.Duration())

	b.Status = StatusCancelled
	assert.False(t, b.BlocksSchedule())

	b.EmployeeID = nil
	assert.False(t, b.IsAssignedTo(7))
}

func TestEmployeeHasSkill(t *testing.T) {
	e := &Employee{Skills: []string{"deep_cleaning", "window_cleaning"}}
	assert.True(t, e.HasSkill("deep_cleaning"))
	assert.False(t, e.HasSkill("carpet_cleaning"))
}

func TestChecklistItemAppliesTo(t *testing.T) {
	general := &ChecklistItem{ServiceType: "deep_cleaning"}
	weekly := &ChecklistItem{ServiceType: "deep_cleaning", Frequency: FrequencyWeekly}

	assert.True(t, general.AppliesTo("deep_cleaning", FrequencyMonthly))
	assert.True(t, weekly.AppliesTo("deep_cleaning", FrequencyWeekly))
	assert.False(t, weekly.AppliesTo("deep_cleaning", FrequencyOnce))
	assert.False(t, general.AppliesTo("office_cleaning", FrequencyOnce))
}

func TestCompletionText(t *testing.T) {
	c := &ChecklistCompletion{TextEN: "Mop floors", TextES: "Trapear pisos"}
	assert.Equal(t, "Trapear pisos", c.Text(LanguageES))
	assert.Equal(t, "Mop floors", c.Text(LanguageEN))

	c.TextES = ""
	assert.Equal(t, "Mop floors", c.Text(LanguageES))
}
