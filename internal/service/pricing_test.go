package service

import (
	"testing"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBase(t *testing.T) {
	var calc PricingCalculator

	tests := []struct {
		name       string
		start, end string
		want       float64
		duration   float64
	}{
		{"two hours", "08:00", "10:00", 20000, 2},
		{"ninety minutes", "08:00", "09:30", 15000, 1.5},
		{"twenty minutes", "08:00", "08:20", 3333.33, 1.0 / 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := calc.ComputeBase(10000, "LAK", tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Total)
			assert.InDelta(t, tt.duration, p.Duration, 1e-9)
			assert.Equal(t, "LAK", p.Currency)
			assert.Equal(t, 10000.0, p.Rate)
		})
	}

	_, err := calc.ComputeBase(10000, "LAK", "10:00", "10:00")
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}

func TestQuoteWithReferee(t *testing.T) {
	var calc PricingCalculator
	referee := &models.StaffMember{ID: "ref-1", HourlyRate: 5000}

	p, err := calc.Quote(10000, "LAK", "08:00", "10:00", []*models.StaffMember{referee}, nil)
	require.NoError(t, err)

	assert.Equal(t, 30000.0, p.Total)
	assert.Equal(t, 30000.0, p.Subtotal)
	require.Len(t, p.Charges, 1)
	assert.Equal(t, "ref-1", p.Charges[0].RefID)
	assert.Equal(t, 10000.0, p.Charges[0].Amount)
}

func TestApplyDiscounts(t *testing.T) {
	var calc PricingCalculator

	t.Run("sequential on running total", func(t *testing.T) {
		p, err := calc.ComputeBase(10000, "LAK", "08:00", "10:00")
		require.NoError(t, err)

		err = calc.ApplyDiscounts(&p, []Discount{
			{Kind: DiscountPercentage, Value: 10, Reason: "member"},
			{Kind: DiscountFixed, Value: 1000, Reason: "promo"},
		})
		require.NoError(t, err)

		require.Len(t, p.Discounts, 2)
		assert.Equal(t, 2000.0, p.Discounts[0].Amount)
		assert.Equal(t, 1000.0, p.Discounts[1].Amount)
		assert.Equal(t, 17000.0, p.Total)
		assert.Equal(t, 20000.0, p.Subtotal)
	})

	t.Run("clamped to remainder", func(t *testing.T) {
		p, err := calc.ComputeBase(10000, "LAK", "08:00", "10:00")
		require.NoError(t, err)

		err = calc.ApplyDiscounts(&p, []Discount{
			{Kind: DiscountFixed, Value: 15000},
			{Kind: DiscountFixed, Value: 15000},
		})
		require.NoError(t, err)

		assert.Equal(t, 15000.0, p.Discounts[0].Amount)
		assert.Equal(t, 5000.0, p.Discounts[1].Amount)
		assert.Equal(t, 0.0, p.Total)
	})

	t.Run("invalid", func(t *testing.T) {
		for _, d := range []Discount{
			{Kind: "bogus", Value: 1},
			{Kind: DiscountPercentage, Value: 120},
			{Kind: DiscountFixed, Value: -5},
		} {
			p := models.Pricing{Total: 100}
			assert.ErrorIs(t, calc.ApplyDiscounts(&p, []Discount{d}), domain.ErrInvalidDiscount)
		}
	})
}

func TestResolveRate(t *testing.T) {
	field := testField()
	slots := testSchedule().Days[0].Slots

	assert.Equal(t, 15000.0, ResolveRate(field, slots, "18:00", "20:00"))
	assert.Equal(t, 15000.0, ResolveRate(field, slots, "18:30", "19:30"))
	assert.Equal(t, 10000.0, ResolveRate(field, slots, "17:00", "19:00"))
	assert.Equal(t, 10000.0, ResolveRate(field, slots, "08:00", "10:00"))
}
