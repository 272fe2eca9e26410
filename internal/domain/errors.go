package domain

import "errors"

var (
	ErrNotFound                 = errors.New("not found")
	ErrInvalidTimeRange         = errors.New("invalid time range")
	ErrSlotConflict             = errors.New("slot conflicts with an active reservation")
	ErrScheduleClosed           = errors.New("no schedule for this day")
	ErrPastDate                 = errors.New("date is in the past")
	ErrDateTooFar               = errors.New("date is too far in the future")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrCancellationWindowClosed = errors.New("cancellation window closed")
	ErrFieldInactive            = errors.New("field is not active")
	ErrInvalidStatus            = errors.New("invalid reservation status")
	ErrInvalidRecurrence        = errors.New("invalid recurrence")
	ErrRefereeUnavailable       = errors.New("not enough referees available")
	ErrInvalidDiscount          = errors.New("invalid discount")
	ErrConcurrentModification   = errors.New("concurrent modification")
)
