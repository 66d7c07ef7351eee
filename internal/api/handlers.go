package api

import (
	"net/http"

	"cleanops/internal/models"
	"cleanops/internal/service"

	"github.com/go-chi/chi/v5"
)

type submitQuoteRequest struct {
	RequesterName    string  `json:"requester_name" validate:"required,max=200"`
	RequesterEmail   string  `json:"requester_email" validate:"required,email"`
	RequesterPhone   string  `json:"requester_phone" validate:"max=50"`
	Language         string  `json:"language" validate:"omitempty,oneof=en es"`
	ServiceType      string  `json:"service_type" validate:"required"`
	PropertyType     string  `json:"property_type" validate:"required,oneof=residential commercial"`
	Area             int     `json:"area" validate:"gt=0"`
	Bedrooms         *int    `json:"bedrooms" validate:"omitempty,gte=0"`
	Bathrooms        *int    `json:"bathrooms" validate:"omitempty,gte=0"`
	Frequency        string  `json:"frequency" validate:"required,oneof=once weekly biweekly monthly"`
	PreferredDate    string  `json:"preferred_date" validate:"omitempty,datetime=2006-01-02"`
	PreferredTime    string  `json:"preferred_time" validate:"omitempty,datetime=15:04"`
	Address          string  `json:"address" validate:"max=500"`
	ChecklistItemIDs []int64 `json:"checklist_item_ids" validate:"required,min=1,dive,gt=0"`
	ClientNotes      string  `json:"client_notes" validate:"max=2000"`
}

type estimateRequest struct {
	ServiceType  string `json:"service_type" validate:"required"`
	PropertyType string `json:"property_type" validate:"required,oneof=residential commercial"`
	Area         int    `json:"area" validate:"gt=0"`
	Frequency    string `json:"frequency" validate:"required,oneof=once weekly biweekly monthly"`
}

type approveQuoteRequest struct {
	ServiceDate     string   `json:"service_date" validate:"omitempty,datetime=2006-01-02"`
	ServiceTime     string   `json:"service_time" validate:"omitempty,datetime=15:04"`
	DurationMinutes int      `json:"duration_minutes" validate:"gte=0,lte=1440"`
	Address         string   `json:"address" validate:"max=500"`
	FinalPrice      *float64 `json:"final_price" validate:"omitempty,gte=0"`
}

type rejectQuoteRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.quotes.ListServices(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *Server) handleChecklistTemplate(w http.ResponseWriter, r *http.Request) {
	frequency := r.URL.Query().Get("frequency")
	if frequency == "" {
		frequency = models.FrequencyOnce
	}
	items, err := s.quotes.ChecklistTemplate(r.Context(), chi.URLParam(r, "serviceType"), frequency)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if !decode(w, r, &req) {
		return
	}
	price, err := s.quotes.Estimate(r.Context(), req.ServiceType, req.PropertyType, req.Area, req.Frequency)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (s *Server) handleSubmitQuote(w http.ResponseWriter, r *http.Request) {
	var req submitQuoteRequest
	if !decode(w, r, &req) {
		return
	}
	q, err := s.quotes.SubmitQuote(r.Context(), actorFrom(r), service.QuoteRequest{
		RequesterName:    req.RequesterName,
		RequesterEmail:   req.RequesterEmail,
		RequesterPhone:   req.RequesterPhone,
		Language:         req.Language,
		ServiceType:      req.ServiceType,
		PropertyType:     req.PropertyType,
		Area:             req.Area,
		Bedrooms:         req.Bedrooms,
		Bathrooms:        req.Bathrooms,
		Frequency:        req.Frequency,
		PreferredDate:    req.PreferredDate,
		PreferredTime:    req.PreferredTime,
		Address:          req.Address,
		ChecklistItemIDs: req.ChecklistItemIDs,
		ClientNotes:      req.ClientNotes,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *Server) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.quotes.ListQuotes(r.Context(), actorFrom(r), r.URL.Query().Get("status"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "quoteID")
	if !ok {
		return
	}
	q, err := s.quotes.GetQuote(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleApproveQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "quoteID")
	if !ok {
		return
	}
	var req approveQuoteRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := s.quotes.ApproveQuote(r.Context(), actorFrom(r), id, service.ApproveRequest{
		ServiceDate:     req.ServiceDate,
		ServiceTime:     req.ServiceTime,
		DurationMinutes: req.DurationMinutes,
		Address:         req.Address,
		FinalPrice:      req.FinalPrice,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleRejectQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "quoteID")
	if !ok {
		return
	}
	var req rejectQuoteRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.quotes.RejectQuote(r.Context(), actorFrom(r), id, req.Reason); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.QuoteStatusRejected})
}
