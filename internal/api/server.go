// Package api exposes the lifecycle operations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cleanops/internal/auth"
	"cleanops/internal/config"
	"cleanops/internal/metrics"
	"cleanops/internal/models"
	"cleanops/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PingRecorder stores a position reported by an employee device.
type PingRecorder interface {
	RecordPing(ctx context.Context, employeeID int64, loc models.Location) error
}

type Server struct {
	cfg      config.APIConfig
	quotes   *service.QuoteService
	bookings *service.BookingService
	pings    PingRecorder
	auth     *auth.Middleware
	limiter  *rateLimiter
	logger   *zerolog.Logger
	server   *http.Server
}

func NewServer(
	cfg config.APIConfig,
	quotes *service.QuoteService,
	bookings *service.BookingService,
	pings PingRecorder,
	tokens *auth.TokenManager,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "http").Logger()
	s := &Server{
		cfg:      cfg,
		quotes:   quotes,
		bookings: bookings,
		pings:    pings,
		auth:     auth.NewMiddleware(tokens, &l),
		limiter:  newRateLimiter(cfg.RateLimit),
		logger:   &l,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Authenticate)
		r.Use(s.limiter.Middleware)

		r.Get("/services", s.handleListServices)
		r.Get("/services/{serviceType}/checklist", s.handleChecklistTemplate)
		r.Post("/estimate", s.handleEstimate)

		r.Route("/quotes", func(r chi.Router) {
			r.Get("/", s.handleListQuotes)
			r.Post("/", s.handleSubmitQuote)
			r.Get("/{quoteID}", s.handleGetQuote)
			r.Post("/{quoteID}/approve", s.handleApproveQuote)
			r.Post("/{quoteID}/reject", s.handleRejectQuote)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", s.handleListBookings)
			r.Route("/{bookingID}", func(r chi.Router) {
				r.Get("/", s.handleGetBooking)
				r.Post("/assign", s.handleAssign)
				r.Post("/unassign", s.handleUnassign)
				r.Post("/start", s.handleStart)
				r.Post("/complete", s.handleComplete)
				r.Post("/cancel", s.handleCancel)
				r.Post("/paid", s.handleMarkPaid)
				r.Put("/notes", s.handleNotes)
				r.Get("/checklist", s.handleGetChecklist)
				r.Patch("/checklist/{itemID}", s.handleToggleItem)
				r.Post("/checklist/{itemID}/rating", s.handleRateItem)
				r.Get("/evidence", s.handleListEvidence)
				r.Post("/evidence", s.handleUploadEvidence)
			})
		})

		r.Route("/employees", func(r chi.Router) {
			r.Post("/me/location", s.handleLocationPing)
			r.Get("/{employeeID}/schedule", s.handleSchedule)
			r.Get("/{employeeID}/availability", s.handleAvailability)
		})
	})
	return r
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

const requestIDHeader = "X-Request-ID"

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.IncHTTP(route, fmt.Sprintf("%dxx", status/100))

		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
