package api

import (
	"errors"
	"net/http"

	"fieldbook/internal/domain"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrUnauthorized, http.StatusForbidden},

	{domain.ErrInvalidTimeRange, http.StatusBadRequest},
	{domain.ErrInvalidRecurrence, http.StatusBadRequest},
	{domain.ErrInvalidDiscount, http.StatusBadRequest},

	{domain.ErrPastDate, http.StatusUnprocessableEntity},
	{domain.ErrDateTooFar, http.StatusUnprocessableEntity},
	{domain.ErrScheduleClosed, http.StatusUnprocessableEntity},
	{domain.ErrFieldInactive, http.StatusUnprocessableEntity},

	{domain.ErrSlotConflict, http.StatusConflict},
	{domain.ErrConcurrentModification, http.StatusConflict},
	{domain.ErrRefereeUnavailable, http.StatusConflict},
	{domain.ErrInvalidStatus, http.StatusConflict},
	{domain.ErrCancellationWindowClosed, http.StatusConflict},
}

// statusFor maps a service error to an HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}
