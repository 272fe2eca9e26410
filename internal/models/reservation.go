package models

import "time"

type LineCharge struct {
	Kind   string  `json:"kind"`
	RefID  string  `json:"ref_id,omitempty"`
	Rate   float64 `json:"rate"`
	Hours  float64 `json:"hours"`
	Amount float64 `json:"amount"`
}

type AppliedDiscount struct {
	Kind   string  `json:"kind"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason,omitempty"`
	Amount float64 `json:"amount"`
}

// Pricing is the snapshot stored on a reservation at booking time.
type Pricing struct {
	Rate      float64           `json:"rate"`
	Duration  float64           `json:"duration"`
	Subtotal  float64           `json:"subtotal"`
	Charges   []LineCharge      `json:"charges,omitempty"`
	Discounts []AppliedDiscount `json:"discounts,omitempty"`
	Total     float64           `json:"total"`
	Currency  string            `json:"currency"`
}

type RefereeAssignment struct {
	StaffID string  `json:"staff_id"`
	Name    string  `json:"name"`
	Rate    float64 `json:"rate"`
}

type MembershipDetails struct {
	SeriesID             string  `json:"seriesId"`
	MembershipStartDate  string  `json:"membershipStartDate"`
	MembershipEndDate    *string `json:"membershipEndDate,omitempty"`
	RecurrencePattern    string  `json:"recurrencePattern"`
	RecurrenceDayOfWeek  int     `json:"recurrenceDayOfWeek"`
	TotalOccurrences     *int    `json:"totalOccurrences,omitempty"`
	CompletedOccurrences int     `json:"completedOccurrences"`
	NextBookingDate      string  `json:"nextBookingDate"`
	IsActive             bool    `json:"isActive"`
}

type CancellationRecord struct {
	CancelledAt  time.Time `json:"cancelledAt"`
	CancelledBy  string    `json:"cancelledBy"`
	Reason       string    `json:"reason"`
	RefundAmount float64   `json:"refundAmount"`
	RefundStatus string    `json:"refundStatus"`
}

type HistoryEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Status    string    `json:"status"`
	ActorID   string    `json:"actor_id"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Reservation struct {
	ID            string              `json:"id"`
	StadiumID     string              `json:"stadium_id"`
	FieldID       string              `json:"field_id"`
	UserID        string              `json:"user_id"`
	Date          string              `json:"date"`
	StartTime     string              `json:"startTime"`
	EndTime       string              `json:"endTime"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"paymentStatus"`
	BookingType   string              `json:"bookingType"`
	Pricing       Pricing             `json:"pricing"`
	Referees      []RefereeAssignment `json:"referees,omitempty"`
	Membership    *MembershipDetails  `json:"membershipDetails,omitempty"`
	Cancellation  *CancellationRecord `json:"cancellation,omitempty"`
	History       []HistoryEntry      `json:"history,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Version       int64               `json:"version"`
}

// IsActive reports whether the reservation still occupies its slot.
func (r *Reservation) IsActive() bool {
	return IsActiveStatus(r.Status)
}

func IsActiveStatus(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

// StartsAt resolves the reservation start instant in loc.
func (r *Reservation) StartsAt(loc *time.Location) (time.Time, error) {
	return CombineDateTime(r.Date, r.StartTime, loc)
}

// ActiveStatuses is the status set that blocks a slot.
func ActiveStatuses() []string {
	return []string{StatusPending, StatusConfirmed}
}
