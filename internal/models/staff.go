package models

type AvailabilityWindow struct {
	ID          string `json:"id" yaml:"id"`
	DayOfWeek   int    `json:"dayOfWeek" yaml:"day_of_week"`
	StartTime   string `json:"startTime" yaml:"start_time"`
	EndTime     string `json:"endTime" yaml:"end_time"`
	IsAvailable bool   `json:"isAvailable" yaml:"is_available"`
}

type StaffMember struct {
	ID           string               `json:"id" yaml:"id"`
	StadiumID    string               `json:"stadium_id" yaml:"stadium_id"`
	Name         string               `json:"name" yaml:"name"`
	Role         string               `json:"role" yaml:"role"`
	Status       string               `json:"status" yaml:"status"`
	HourlyRate   float64              `json:"hourlyRate" yaml:"hourly_rate"`
	Availability []AvailabilityWindow `json:"availability" yaml:"availability"`
}

// Actor is the caller performing a mutation.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// IsPrivileged reports whether the actor may cancel inside the lockout window.
func (a Actor) IsPrivileged() bool {
	return a.Role == RoleStadiumOwner || a.Role == RoleAdmin
}
