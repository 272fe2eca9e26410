package models

import "time"

type Stadium struct {
	ID        string    `json:"id" yaml:"id"`
	OwnerID   string    `json:"owner_id" yaml:"owner_id"`
	Name      string    `json:"name" yaml:"name"`
	Timezone  string    `json:"timezone" yaml:"timezone"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

type Field struct {
	ID             string    `json:"id" yaml:"id"`
	StadiumID      string    `json:"stadium_id" yaml:"stadium_id"`
	Name           string    `json:"name" yaml:"name"`
	Status         string    `json:"status" yaml:"status"`
	BaseHourlyRate float64   `json:"base_hourly_rate" yaml:"base_hourly_rate"`
	Currency       string    `json:"currency" yaml:"currency"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
}

func (f *Field) IsActive() bool {
	return f.Status == FieldStatusActive
}

// TimeSlot is one bookable range inside a day template or override.
type TimeSlot struct {
	ID          string   `json:"id" yaml:"id"`
	StartTime   string   `json:"startTime" yaml:"start_time"`
	EndTime     string   `json:"endTime" yaml:"end_time"`
	IsAvailable bool     `json:"isAvailable" yaml:"is_available"`
	SpecialRate *float64 `json:"specialRate,omitempty" yaml:"special_rate,omitempty"`
}

type DaySchedule struct {
	DayOfWeek int        `json:"dayOfWeek" yaml:"day_of_week"`
	Slots     []TimeSlot `json:"slots" yaml:"slots"`
}

// SpecialDateOverride replaces the weekday template for a single date.
type SpecialDateOverride struct {
	ID     string     `json:"id" yaml:"id"`
	Date   string     `json:"date" yaml:"date"`
	Reason string     `json:"reason" yaml:"reason"`
	Slots  []TimeSlot `json:"slots" yaml:"slots"`
}

type FieldSchedule struct {
	StadiumID    string                `json:"stadium_id" yaml:"stadium_id"`
	FieldID      string                `json:"field_id" yaml:"field_id"`
	Days         []DaySchedule         `json:"days" yaml:"days"`
	SpecialDates []SpecialDateOverride `json:"special_dates" yaml:"special_dates"`
}

// SlotsFor returns the effective slots for a date. An override for the date
// wins over the weekday template entirely. ok is false when neither exists.
func (s *FieldSchedule) SlotsFor(date time.Time) (slots []TimeSlot, override *SpecialDateOverride, ok bool) {
	if s == nil {
		return nil, nil, false
	}
	key := DateKey(date)
	for i := range s.SpecialDates {
		if s.SpecialDates[i].Date == key {
			return s.SpecialDates[i].Slots, &s.SpecialDates[i], true
		}
	}
	weekday := int(date.Weekday())
	for _, day := range s.Days {
		if day.DayOfWeek == weekday {
			return day.Slots, nil, true
		}
	}
	return nil, nil, false
}
