package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cleanops/internal/auth"
	"cleanops/internal/models"
	"cleanops/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var statusByCode = map[string]int{
	"invalid_input":        http.StatusBadRequest,
	"not_authorized":       http.StatusForbidden,
	"not_found":            http.StatusNotFound,
	"invalid_state":        http.StatusConflict,
	"checklist_incomplete": http.StatusConflict,
	"employee_unavailable": http.StatusConflict,
	"evidence_missing":     http.StatusConflict,
	"location_unavailable": http.StatusUnprocessableEntity,
	"upload_failed":        http.StatusBadGateway,
	"delivery_failed":      http.StatusBadGateway,
}

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message, Code: code})
}

// writeServiceError renders a lifecycle error with the status its code maps to.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := service.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}

// decode reads a JSON body into dst and runs struct validation. An empty
// body decodes as the zero value.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func writeValidationError(w http.ResponseWriter, err error) {
	fields := map[string]string{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[jsonName(fe.Field())] = formatValidationError(fe)
		}
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:  "one or more fields failed validation",
		Code:   "invalid_input",
		Fields: fields,
	})
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gt", "gte", "lt", "lte", "min", "max":
		return fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())
	case "datetime":
		return fmt.Sprintf("must match layout %s", fe.Param())
	default:
		return "is invalid"
	}
}

// jsonName turns a Go field name like ServiceType into service_type.
func jsonName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", fmt.Sprintf("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

func actorFrom(r *http.Request) models.Actor {
	actor, _ := auth.ActorFrom(r.Context())
	return actor
}
