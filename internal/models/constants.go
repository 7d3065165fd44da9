package models

import "time"

// BookingStatus is the lifecycle status of a booking as reported by the backend.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
	StatusRejected  BookingStatus = "rejected"
)

// PaymentStatus tracks the money side of a booking.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentMethod selects between the online checkout and pay-at-hostel.
type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "online"
	PaymentCash   PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentOnline || m == PaymentCash
}

const (
	RoleUser        = "user"
	RoleHostelOwner = "hostelOwner"
	RoleAdmin       = "admin"
)

const (
	// MinimumStayMonths is the shortest stay a hostel accepts, in calendar months
	MinimumStayMonths = 1

	// DefaultCurrency is sent to the payment processor when none is configured
	DefaultCurrency = "pkr"

	// MinorUnitsPerMajor converts rupees to paisa (or dollars to cents)
	MinorUnitsPerMajor = 100

	// DefaultRoomsCacheTTL bounds how stale a cached room list may be
	DefaultRoomsCacheTTL = 2 * time.Minute

	// DefaultSessionTTL is the Redis expiry of a persisted credential
	DefaultSessionTTL = 30 * 24 * time.Hour
)
