package service

import (
	"fmt"
	"time"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"
)

// CancellationDecision is the outcome of evaluating a cancellation request.
type CancellationDecision struct {
	Allowed         bool    `json:"allowed"`
	HoursUntilStart float64 `json:"hoursUntilStart"`
	RefundPercent   float64 `json:"refundPercent"`
	RefundAmount    float64 `json:"refundAmount"`
	RefundStatus    string  `json:"refundStatus"`
}

// CancellationPolicy applies the lockout window and refund tiers in the
// stadium's local time.
type CancellationPolicy struct {
	loc          *time.Location
	fullHours    float64
	partialHours float64
}

func NewCancellationPolicy(loc *time.Location, fullRefundHours, partialRefundHours int) *CancellationPolicy {
	if loc == nil {
		loc = models.LoadLocation(models.DefaultTimezone)
	}
	if fullRefundHours <= 0 {
		fullRefundHours = models.FullRefundHours
	}
	if partialRefundHours <= 0 {
		partialRefundHours = models.PartialRefundHours
	}
	return &CancellationPolicy{
		loc:          loc,
		fullHours:    float64(fullRefundHours),
		partialHours: float64(partialRefundHours),
	}
}

// Evaluate decides whether actor may cancel r at now and what is refunded.
// Privileged actors skip the lockout but not the refund tiers.
func (p *CancellationPolicy) Evaluate(r *models.Reservation, now time.Time, actor models.Actor) (CancellationDecision, error) {
	start, err := r.StartsAt(p.loc)
	if err != nil {
		return CancellationDecision{}, fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
	}
	hours := start.Sub(now.In(p.loc)).Hours()

	d := CancellationDecision{
		Allowed:         hours >= p.partialHours || actor.IsPrivileged(),
		HoursUntilStart: hours,
	}

	d.RefundPercent, d.RefundAmount, d.RefundStatus = p.refund(r, hours)
	return d, nil
}

// RefundFor applies the refund tiers alone. Series cancellation uses it,
// the lockout does not apply there.
func (p *CancellationPolicy) RefundFor(r *models.Reservation, now time.Time) (amount float64, status string) {
	start, err := r.StartsAt(p.loc)
	if err != nil {
		return 0, models.RefundNotApplicable
	}
	_, amount, status = p.refund(r, start.Sub(now.In(p.loc)).Hours())
	return amount, status
}

func (p *CancellationPolicy) refund(r *models.Reservation, hours float64) (percent, amount float64, status string) {
	if r.PaymentStatus != models.PaymentPaid {
		return 0, 0, models.RefundNotApplicable
	}

	switch {
	case hours >= p.fullHours:
		percent = 100
	case hours >= p.partialHours:
		percent = 50
	}
	amount = roundMoney(r.Pricing.Total * percent / 100)
	if amount > 0 {
		return percent, amount, models.RefundPending
	}
	return percent, 0, models.RefundNone
}
