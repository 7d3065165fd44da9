package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Booking is a reservation record as returned by the backend. Hostel and Room
// are nil when the server did not populate them.
type Booking struct {
	ID            string        `json:"_id"`
	UserID        string        `json:"user,omitempty"`
	HostelID      string        `json:"hostelId,omitempty"`
	RoomID        string        `json:"roomId,omitempty"`
	Hostel        *Hostel       `json:"hostel"`
	Room          *Room         `json:"room"`
	CheckInDate   time.Time     `json:"checkInDate"`
	CheckOutDate  time.Time     `json:"checkOutDate"`
	SeatsBooked   int           `json:"seatsBooked"`
	Amount        float64       `json:"amount"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Status        BookingStatus `json:"status"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// HostelRef returns the hostel id from whichever field the server filled in.
func (b Booking) HostelRef() string {
	if b.HostelID != "" {
		return b.HostelID
	}
	if b.Hostel != nil {
		return b.Hostel.ID
	}
	return ""
}

// RoomRef returns the room id from whichever field the server filled in.
func (b Booking) RoomRef() string {
	if b.RoomID != "" {
		return b.RoomID
	}
	if b.Room != nil {
		return b.Room.ID
	}
	return ""
}

// Hostel is the subset of the hostel document the client uses.
type Hostel struct {
	ID        string   `json:"_id"`
	Name      string   `json:"name"`
	Images    []string `json:"images,omitempty"`
	Amenities []string `json:"amenities,omitempty"`
}

// UnmarshalJSON accepts either a populated hostel object or a bare id string.
func (h *Hostel) UnmarshalJSON(data []byte) error {
	if id, ok := bareID(data); ok {
		*h = Hostel{ID: id}
		return nil
	}
	type alias Hostel
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*h = Hostel(a)
	return nil
}

// Room is read-only from the booking workflow's perspective. AvailableBeds is
// advisory; the server stays the authority on capacity.
type Room struct {
	ID            string  `json:"_id"`
	RoomNumber    string  `json:"roomNumber"`
	TotalBeds     int     `json:"totalBeds"`
	AvailableBeds int     `json:"availableBeds"`
	PricePerBed   float64 `json:"pricePerBed"`
}

// UnmarshalJSON accepts a populated room, a bare id string, and numeric room numbers.
func (r *Room) UnmarshalJSON(data []byte) error {
	if id, ok := bareID(data); ok {
		*r = Room{ID: id}
		return nil
	}
	var raw struct {
		ID            string          `json:"_id"`
		RoomNumber    json.RawMessage `json:"roomNumber"`
		TotalBeds     int             `json:"totalBeds"`
		AvailableBeds int             `json:"availableBeds"`
		PricePerBed   float64         `json:"pricePerBed"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Room{
		ID:            raw.ID,
		RoomNumber:    rawScalar(raw.RoomNumber),
		TotalBeds:     raw.TotalBeds,
		AvailableBeds: raw.AvailableBeds,
		PricePerBed:   raw.PricePerBed,
	}
	return nil
}

func bareID(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return "", false
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return "", false
	}
	return id, true
}

func rawScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return string(raw)
}

// ActiveBookings drops cancelled and rejected bookings, keeping the server order.
func ActiveBookings(bookings []Booking) []Booking {
	out := make([]Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Status == StatusCancelled || b.Status == StatusRejected {
			continue
		}
		out = append(out, b)
	}
	return out
}

// CreateBookingRequest is the body of POST /bookings/book.
type CreateBookingRequest struct {
	HostelID      string        `json:"hostelId"`
	RoomID        string        `json:"roomId"`
	CheckInDate   time.Time     `json:"checkInDate"`
	CheckOutDate  time.Time     `json:"checkOutDate"`
	SeatsBooked   int           `json:"seatsBooked"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
	Amount        float64       `json:"amount"`
}

// ConfirmBookingRequest is the body of POST /payment/payment-success.
type ConfirmBookingRequest struct {
	BookingID       string    `json:"bookingId"`
	PaymentIntentID string    `json:"paymentIntentId"`
	HostelID        string    `json:"hostelId"`
	RoomID          string    `json:"roomId"`
	CheckInDate     time.Time `json:"checkInDate"`
	CheckOutDate    time.Time `json:"checkOutDate"`
	SeatsBooked     int       `json:"seatsBooked"`
	Amount          float64   `json:"amount"`
}

// ReviewRequest is the body of POST /reviews/add.
type ReviewRequest struct {
	HostelID  string `json:"hostelId"`
	BookingID string `json:"bookingId"`
	Rating    int    `json:"rating"`
	Title     string `json:"title"`
	Comment   string `json:"comment"`
}

type Review struct {
	ID        string    `json:"_id"`
	HostelID  string    `json:"hostel"`
	BookingID string    `json:"booking"`
	Rating    int       `json:"rating"`
	Title     string    `json:"title"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdminSummary aggregates the counts shown on the moderation dashboard.
// Errors holds per-source failures; the remaining counts are still valid.
type AdminSummary struct {
	TotalHostels     int               `json:"totalHostels"`
	TotalUsers       int               `json:"totalUsers"`
	TotalBookings    int               `json:"totalBookings"`
	PendingApprovals int               `json:"pendingApprovals"`
	Errors           map[string]string `json:"errors,omitempty"`
}
