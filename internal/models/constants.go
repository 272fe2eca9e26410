package models

// Reservation lifecycle.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
	PaymentFailed   = "failed"
)

const (
	BookingTypeRegular    = "regular"
	BookingTypeMembership = "membership"
)

const (
	RecurrenceWeekly   = "weekly"
	RecurrenceBiweekly = "biweekly"
	RecurrenceMonthly  = "monthly"
)

const (
	RefundPending       = "pending"
	RefundNone          = "none"
	RefundNotApplicable = "not_applicable"
)

const (
	FieldStatusActive      = "active"
	FieldStatusInactive    = "inactive"
	FieldStatusMaintenance = "maintenance"
)

const (
	StaffRoleReferee = "referee"
	StaffRoleCoach   = "coach"

	StaffStatusActive   = "active"
	StaffStatusInactive = "inactive"
)

// Actor roles.
const (
	RoleCustomer     = "customer"
	RoleStadiumOwner = "stadium_owner"
	RoleAdmin        = "admin"
)

// Reasons reported by availability checks and series generation.
const (
	ReasonAvailable           = "available"
	ReasonBooked              = "booked"
	ReasonScheduleUnavailable = "schedule_unavailable"
	ReasonScheduleClosed      = "schedule_closed"
	ReasonFieldInactive       = "field_inactive"
	ReasonPastDate            = "past_date"
	ReasonBeyondWindow        = "beyond_booking_window"
)

const (
	// DefaultMaxOccurrences верхняя граница длины серии без totalOccurrences
	DefaultMaxOccurrences = 52

	// DefaultTimezone часовой пояс стадионов
	DefaultTimezone = "Asia/Vientiane"

	// DefaultCurrency валюта по умолчанию
	DefaultCurrency = "LAK"

	// FullRefundHours и PartialRefundHours пороги возврата
	FullRefundHours    = 48
	PartialRefundHours = 24

	// DefaultMaxAdvanceDays насколько далеко вперед можно бронировать
	DefaultMaxAdvanceDays = 365

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// SlotLockTTL время жизни блокировки слота в Redis
	SlotLockTTL = 10 // секунд
)
