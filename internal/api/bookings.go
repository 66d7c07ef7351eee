package api

import (
	"errors"
	"net/http"
	"strconv"

	"cleanops/internal/location"
	"cleanops/internal/models"
)

type assignRequest struct {
	EmployeeID int64 `json:"employee_id" validate:"required,gt=0"`
}

type locationDTO struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy  float64 `json:"accuracy" validate:"gte=0"`
}

func (l locationDTO) model() models.Location {
	return models.Location{Latitude: l.Latitude, Longitude: l.Longitude, Accuracy: l.Accuracy}
}

// fieldWorkRequest may carry the device position taken when the button was pressed.
type fieldWorkRequest struct {
	Location *locationDTO `json:"location" validate:"omitempty"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

type toggleRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

type rateRequest struct {
	Rating int     `json:"rating" validate:"required,gte=1,lte=5"`
	Notes  *string `json:"notes" validate:"omitempty,max=2000"`
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bookings, err := s.bookings.ListBookings(r.Context(), actorFrom(r), q.Get("status"), q.Get("date"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "bookingID")
	if !ok {
		return
	}
	b, err := s.bookings.GetBooking(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "bookingID")
	if !ok {
		return
	}
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := s.bookings.AssignEmployee(r.Context(), actorFrom(r), id, req.EmployeeID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "bookingID")
	if !ok {
		return
	}
	b, err := s.bookings.UnassignEmployee(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.fieldWork(w, r)
	if !ok {
		return
	}
	b, err := s.bookings.StartWork(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.fieldWork(w, r)
	if !ok {
		return
	}
	res, err := s.bookings.CompleteWork(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// fieldWork parses the booking id and records an inline position, if any,
// before the transition captures the location.
func (s *Server) fieldWork(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := idParam(w, r, "bookingID")
	if !ok {
		return 0, false
	}
	var req fieldWorkRequest
	if !decode(w, r, &req) {
		return 0, false
	}
	actor := actorFrom(r)
	if req.Location != nil && actor.Role == models.RoleEmployee {
		if !s.recordPing(w, r, actor.ID, req.Location.model()) {
			return 0, false
		}
	}
	return id, true
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "bookingID")
	if !ok {
		return
	}
	b, err := s.bookings.CancelBooking(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "bookingID")
	if !ok {
		return
	}
	b, err := s.bookings.MarkPaid(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "bookingID")
	if !ok {
		return
	}
	var req notesRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := s.bookings.UpdateEmployeeNotes(r.Context(), actorFrom(r), id, req.Notes)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleGetChecklist(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "bookingID")
	if !ok {
		return
	}
	view, err := s.bookings.GetChecklist(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := idParam(w, r, "bookingID")
	if !ok {
		return
	}
	itemID, ok := idParam(w, r, "itemID")
	if !ok {
		return
	}
	var req toggleRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := s.bookings.ToggleChecklistItem(r.Context(), actorFrom(r), bookingID, itemID, *req.Completed)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleRateItem(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := idParam(w, r, "bookingID")
	if !ok {
		return
	}
	itemID, ok := idParam(w, r, "itemID")
	if !ok {
		return
	}
	var req rateRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := s.bookings.RateChecklistItem(r.Context(), actorFrom(r), bookingID, itemID, req.Rating, req.Notes)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "bookingID")
	if !ok {
		return
	}
	list, err := s.bookings.ListEvidence(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"evidence": list})
}

// handleUploadEvidence accepts multipart/form-data with a "phase" field and a "file" part.
func (s *Server) handleUploadEvidence(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "bookingID")
	if !ok {
		return
	}
	maxBytes := s.cfg.HTTP.MaxUploadMB << 20
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	ev, err := s.bookings.UploadEvidence(r.Context(), actorFrom(r), id, r.FormValue("phase"), header.Filename, contentType, file)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleLocationPing(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if actor.Role != models.RoleEmployee {
		writeError(w, http.StatusForbidden, "not_authorized", "only employees report locations")
		return
	}
	var req locationDTO
	if !decode(w, r, &req) {
		return
	}
	if !s.recordPing(w, r, actor.ID, req.model()) {
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) recordPing(w http.ResponseWriter, r *http.Request, employeeID int64, loc models.Location) bool {
	if s.pings == nil {
		writeError(w, http.StatusServiceUnavailable, "location_unavailable", "location tracking is disabled")
		return false
	}
	err := s.pings.RecordPing(r.Context(), employeeID, loc)
	switch {
	case err == nil:
		return true
	case errors.Is(err, location.ErrInvalidLocation):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, location.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
	default:
		s.logger.Error().Err(err).Int64("employee_id", employeeID).Msg("record location ping")
		writeError(w, http.StatusInternalServerError, "internal", "could not record location")
	}
	return false
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := idParam(w, r, "employeeID")
	if !ok {
		return
	}
	bookings, err := s.bookings.ListEmployeeSchedule(r.Context(), actorFrom(r), employeeID, r.URL.Query().Get("date"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := idParam(w, r, "employeeID")
	if !ok {
		return
	}
	q := r.URL.Query()
	duration := 0
	if raw := q.Get("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "duration must be a non-negative integer")
			return
		}
		duration = d
	}
	res, err := s.bookings.CheckAvailability(r.Context(), actorFrom(r), employeeID, q.Get("date"), q.Get("start"), duration)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
