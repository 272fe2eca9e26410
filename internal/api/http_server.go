package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldbook/internal/config"
	"fieldbook/internal/domain"
	"fieldbook/internal/metrics"
	"fieldbook/internal/models"
	"fieldbook/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// BookingAPI is the part of the booking service exposed over HTTP.
type BookingAPI interface {
	CheckSlot(ctx context.Context, fieldID, date, start, end string) (*service.SlotCheck, error)
	GetAvailability(ctx context.Context, fieldID, date string) (*service.DayAvailability, error)
	ListReferees(ctx context.Context, stadiumID, date, start, end string) ([]*models.StaffMember, error)
	CreateBooking(ctx context.Context, actor models.Actor, req service.BookingRequest) (*models.Reservation, error)
	CreateMembershipSeries(ctx context.Context, actor models.Actor, req service.SeriesRequest) (*service.SeriesResult, error)
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]*models.Reservation, error)
	CancelBooking(ctx context.Context, id string, actor models.Actor, reason string) (*service.CancellationResult, error)
	CancelMembershipSeries(ctx context.Context, id string, actor models.Actor, reason string) (*service.SeriesCancellation, error)
}

// WorkbookExporter builds reservation spreadsheets.
type WorkbookExporter interface {
	Workbook(ctx context.Context, fieldID, from, to string) (*excelize.File, error)
}

// Pinger is satisfied by *database.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HTTPServer exposes the booking engine as a JSON API.
type HTTPServer struct {
	cfg      config.APIConfig
	booking  BookingAPI
	exporter WorkbookExporter
	ready    Pinger
	server   *http.Server
	auth     *HTTPAuth
	log      zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	booking BookingAPI,
	exporter WorkbookExporter,
	ready Pinger,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		booking:  booking,
		exporter: exporter,
		ready:    ready,
		auth:     NewHTTPAuth(cfg),
		log:      zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /readyz", srv.handleReady)

	srv.route(mux, "GET /api/v1/fields/{id}/slots/check", permReadAvailability, srv.handleCheckSlot)
	srv.route(mux, "GET /api/v1/fields/{id}/availability", permReadAvailability, srv.handleAvailability)
	srv.route(mux, "GET /api/v1/stadiums/{id}/referees", permReadAvailability, srv.handleReferees)
	srv.route(mux, "GET /api/v1/fields/{id}/export", permReadExports, srv.handleExport)

	srv.route(mux, "GET /api/v1/reservations", permReadReservations, srv.handleListReservations)
	srv.route(mux, "GET /api/v1/reservations/{id}", permReadReservations, srv.handleGetReservation)
	srv.route(mux, "POST /api/v1/reservations", permWriteReservations, srv.handleCreateReservation)
	srv.route(mux, "POST /api/v1/reservations/{id}/cancel", permWriteReservations, srv.handleCancelReservation)
	srv.route(mux, "POST /api/v1/memberships", permWriteReservations, srv.handleCreateMembership)
	srv.route(mux, "POST /api/v1/memberships/{id}/cancel", permWriteReservations, srv.handleCancelMembership)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) route(mux *http.ServeMux, pattern, permission string, h http.HandlerFunc) {
	mux.Handle(pattern, s.auth.Require(permission, h))
}

// Handler returns the root handler, middleware included.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.PingContext(ctx); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg  config.APIConfig
	keys *keyring
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{cfg: cfg, keys: newKeyring(cfg)}
}

// Require guards next with credentials that carry permission.
func (a *HTTPAuth) Require(permission string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader()))
		extra := strings.TrimSpace(r.Header.Get(a.keys.extraHeader()))
		if err := a.keys.check(apiKey, extra, permission); err != nil {
			statusCode := http.StatusUnauthorized
			if errors.Is(err, errPermissionDenied) {
				statusCode = http.StatusForbidden
			}
			writeError(w, statusCode, err.Error())
			return
		}

		if !a.keys.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.keys.apiKeyHeader())); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

const requestIDHeader = "X-Request-ID"

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		// Pattern заполняется mux'ом
		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint, strconv.Itoa(recorder.status))

		ev := s.log.Info()
		if recorder.status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
