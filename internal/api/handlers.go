package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fieldbook/internal/domain"
	"fieldbook/internal/export"
	"fieldbook/internal/models"
	"fieldbook/internal/service"
)

// Actor identity is forwarded by the authenticated gateway.
const (
	actorIDHeader   = "X-Actor-ID"
	actorRoleHeader = "X-Actor-Role"

	maxBodyBytes = 1 << 20
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func actorFrom(r *http.Request) models.Actor {
	actor := models.Actor{ID: strings.TrimSpace(r.Header.Get(actorIDHeader))}
	switch role := strings.TrimSpace(r.Header.Get(actorRoleHeader)); role {
	case models.RoleStadiumOwner, models.RoleAdmin:
		actor.Role = role
	default:
		actor.Role = models.RoleCustomer
	}
	return actor
}

// decodeJSON reads a JSON body. An empty body is accepted when optional.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (s *HTTPServer) handleCheckSlot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, start, end := q.Get("date"), q.Get("start"), q.Get("end")
	if date == "" || start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "date, start and end are required")
		return
	}

	check, err := s.booking.CheckSlot(r.Context(), r.PathValue("id"), date, start, end)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	day, err := s.booking.GetAvailability(r.Context(), r.PathValue("id"), date)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *HTTPServer) handleReferees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, start, end := q.Get("date"), q.Get("start"), q.Get("end")
	if date == "" || start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "date, start and end are required")
		return
	}

	referees, err := s.booking.ListReferees(r.Context(), r.PathValue("id"), date, start, end)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if referees == nil {
		referees = []*models.StaffMember{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"referees": referees})
}

func (s *HTTPServer) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req service.BookingRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reservation, err := s.booking.CreateBooking(r.Context(), actorFrom(r), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservation)
}

func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	reservation, err := s.booking.GetReservation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	actor := actorFrom(r)
	if !actor.IsPrivileged() && reservation.UserID != actor.ID {
		s.writeServiceError(w, domain.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (s *HTTPServer) handleListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ReservationFilter{
		FieldID:  q.Get("fieldId"),
		Date:     q.Get("date"),
		FromDate: q.Get("from"),
		ToDate:   q.Get("to"),
		SeriesID: q.Get("seriesId"),
		Statuses: splitCSV(q.Get("status")),
	}

	actor := actorFrom(r)
	if !actor.IsPrivileged() {
		if actor.ID == "" {
			s.writeServiceError(w, domain.ErrUnauthorized)
			return
		}
		filter.UserID = actor.ID
	}

	reservations, err := s.booking.ListReservations(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if reservations == nil {
		reservations = []*models.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": reservations})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *HTTPServer) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.booking.CancelBooking(r.Context(), r.PathValue("id"), actorFrom(r), req.Reason)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleCreateMembership(w http.ResponseWriter, r *http.Request) {
	var req service.SeriesRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.booking.CreateMembershipSeries(r.Context(), actorFrom(r), req)
	if err != nil {
		if result != nil {
			// часть серии уже создана
			s.log.Error().Err(err).Str("series_id", result.SeriesID).Int("created", result.Created).Msg("membership series interrupted")
			writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "result": result})
			return
		}
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleCancelMembership(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.booking.CancelMembershipSeries(r.Context(), r.PathValue("id"), actorFrom(r), req.Reason)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotFound, "export is disabled")
		return
	}
	if !actorFrom(r).IsPrivileged() {
		s.writeServiceError(w, domain.ErrUnauthorized)
		return
	}

	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	fieldID := r.PathValue("id")
	f, err := s.exporter.Workbook(r.Context(), fieldID, from, to)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(fieldID, from, to)))
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		s.log.Error().Err(err).Str("field_id", fieldID).Msg("write workbook")
	}
}
