package service

import (
	"errors"
	"fmt"

	"cleanops/internal/database"
	"cleanops/internal/pricing"
)

// Typed rejections returned by lifecycle operations.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrInvalidState        = errors.New("invalid state")
	ErrChecklistIncomplete = errors.New("checklist incomplete")
	ErrEmployeeUnavailable = errors.New("employee unavailable")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrUploadFailed        = errors.New("upload failed")
	ErrDeliveryFailed      = errors.New("delivery failed")
	ErrNotFound            = errors.New("not found")
	ErrEvidenceMissing     = errors.New("evidence missing")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidInput, "invalid_input"},
	{pricing.ErrInvalidInput, "invalid_input"},
	{ErrNotAuthorized, "not_authorized"},
	{ErrChecklistIncomplete, "checklist_incomplete"},
	{ErrEmployeeUnavailable, "employee_unavailable"},
	{ErrLocationUnavailable, "location_unavailable"},
	{ErrUploadFailed, "upload_failed"},
	{ErrDeliveryFailed, "delivery_failed"},
	{ErrEvidenceMissing, "evidence_missing"},
	{ErrInvalidState, "invalid_state"},
	{ErrNotFound, "not_found"},
	{database.ErrNotFound, "not_found"},
}

// Code maps err to a stable identifier. Nil is "ok", anything unknown "internal".
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// storeError translates storage sentinels into the lifecycle taxonomy.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, database.ErrChecklistIncomplete):
		return fmt.Errorf("%w: %w", ErrChecklistIncomplete, err)
	case errors.Is(err, database.ErrEmployeeBusy):
		return fmt.Errorf("%w: %w", ErrEmployeeUnavailable, err)
	case errors.Is(err, database.ErrConcurrentModification), errors.Is(err, database.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return err
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
