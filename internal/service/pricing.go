package service

import (
	"fmt"
	"math"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"

	chargeReferee = "referee"
)

// Discount is applied to the running total in the order given.
type Discount struct {
	Kind   string  `json:"kind"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason,omitempty"`
}

// PricingCalculator computes duration-based reservation prices.
type PricingCalculator struct{}

// ComputeBase prices [start,end) at rate per hour. Duration is fractional.
func (PricingCalculator) ComputeBase(rate float64, currency, start, end string) (models.Pricing, error) {
	hours, err := models.DurationHours(start, end)
	if err != nil {
		return models.Pricing{}, fmt.Errorf("%w: %v", domain.ErrInvalidTimeRange, err)
	}
	total := roundMoney(rate * hours)
	return models.Pricing{
		Rate:     rate,
		Duration: hours,
		Subtotal: total,
		Total:    total,
		Currency: currency,
	}, nil
}

// AddReferees adds one rate x duration line charge per referee.
func (PricingCalculator) AddReferees(p *models.Pricing, referees []*models.StaffMember) {
	for _, ref := range referees {
		amount := roundMoney(ref.HourlyRate * p.Duration)
		p.Charges = append(p.Charges, models.LineCharge{
			Kind:   chargeReferee,
			RefID:  ref.ID,
			Rate:   ref.HourlyRate,
			Hours:  p.Duration,
			Amount: amount,
		})
		p.Subtotal = roundMoney(p.Subtotal + amount)
		p.Total = roundMoney(p.Total + amount)
	}
}

// ApplyDiscounts applies discounts sequentially against the running total.
// A discount larger than what is left consumes exactly the remainder.
func (PricingCalculator) ApplyDiscounts(p *models.Pricing, discounts []Discount) error {
	for _, d := range discounts {
		if d.Value < 0 {
			return fmt.Errorf("%w: negative value %v", domain.ErrInvalidDiscount, d.Value)
		}

		var amount float64
		switch d.Kind {
		case DiscountPercentage:
			if d.Value > 100 {
				return fmt.Errorf("%w: percentage %v over 100", domain.ErrInvalidDiscount, d.Value)
			}
			amount = roundMoney(p.Total * d.Value / 100)
		case DiscountFixed:
			amount = d.Value
		default:
			return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidDiscount, d.Kind)
		}
		if amount > p.Total {
			amount = p.Total
		}

		p.Discounts = append(p.Discounts, models.AppliedDiscount{
			Kind:   d.Kind,
			Value:  d.Value,
			Reason: d.Reason,
			Amount: amount,
		})
		p.Total = roundMoney(p.Total - amount)
	}
	return nil
}

// Quote prices a reservation including referees and discounts.
func (c PricingCalculator) Quote(
	rate float64,
	currency, start, end string,
	referees []*models.StaffMember,
	discounts []Discount,
) (models.Pricing, error) {
	p, err := c.ComputeBase(rate, currency, start, end)
	if err != nil {
		return models.Pricing{}, err
	}
	c.AddReferees(&p, referees)
	if err := c.ApplyDiscounts(&p, discounts); err != nil {
		return models.Pricing{}, err
	}
	return p, nil
}

// ResolveRate returns the special rate of the schedule slot containing
// [start,end) when it has one, the field base rate otherwise.
func ResolveRate(field *models.Field, slots []models.TimeSlot, start, end string) float64 {
	s, e, err := models.ParseRange(start, end)
	if err != nil {
		return field.BaseHourlyRate
	}
	for _, slot := range slots {
		if slot.SpecialRate == nil {
			continue
		}
		ss, se, err := models.ParseRange(slot.StartTime, slot.EndTime)
		if err != nil {
			continue
		}
		if ss <= s && se >= e {
			return *slot.SpecialRate
		}
	}
	return field.BaseHourlyRate
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
