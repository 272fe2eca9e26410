package models

// Catalog is the seed data for stadiums, fields, schedules and staff.
type Catalog struct {
	Stadiums  []Stadium       `yaml:"stadiums"`
	Fields    []Field         `yaml:"fields"`
	Schedules []FieldSchedule `yaml:"schedules"`
	Staff     []StaffMember   `yaml:"staff"`
}
