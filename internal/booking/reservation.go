package booking

import (
	"fmt"
	"strings"
	"time"

	"hostellite/internal/domain"
	"hostellite/internal/models"
)

// ReservationRequest is the immutable description of one reservation attempt.
// Check-out is already clamped to the minimum stay and the price derived.
type ReservationRequest struct {
	hostelID string
	room     models.Room
	checkIn  time.Time
	checkOut time.Time
	seats    int
	method   models.PaymentMethod
	clamped  bool
}

// NewReservationRequest validates the selection and clamps a short stay up to
// minStayMonths instead of rejecting it.
func NewReservationRequest(
	hostelID string,
	room models.Room,
	checkIn, checkOut time.Time,
	seats int,
	method models.PaymentMethod,
	minStayMonths int,
) (ReservationRequest, error) {
	hostelID = strings.TrimSpace(hostelID)
	switch {
	case hostelID == "":
		return ReservationRequest{}, domain.ValidationError{Field: "hostel", Msg: "is required"}
	case room.ID == "":
		return ReservationRequest{}, domain.ValidationError{Field: "room", Msg: "is required"}
	case checkIn.IsZero():
		return ReservationRequest{}, domain.ValidationError{Field: "check-in date", Msg: "is required"}
	case seats < 1:
		return ReservationRequest{}, domain.ValidationError{Field: "seats", Msg: "must be at least 1"}
	case seats > room.AvailableBeds:
		return ReservationRequest{}, domain.ValidationError{Field: "seats", Msg: seatsMessage(room.AvailableBeds)}
	case !method.Valid():
		return ReservationRequest{}, domain.ValidationError{Field: "payment method", Msg: "must be online or cash"}
	case room.PricePerBed < 0:
		return ReservationRequest{}, domain.ValidationError{Field: "room", Msg: "has a negative price"}
	}

	effective, clamped := models.ClampCheckOut(checkIn, checkOut, minStayMonths)
	return ReservationRequest{
		hostelID: hostelID,
		room:     room,
		checkIn:  checkIn,
		checkOut: effective,
		seats:    seats,
		method:   method,
		clamped:  clamped,
	}, nil
}

func seatsMessage(available int) string {
	switch {
	case available <= 0:
		return "no beds available in this room"
	case available == 1:
		return "only 1 bed available"
	default:
		return fmt.Sprintf("only %d beds available", available)
	}
}

func (r ReservationRequest) HostelID() string                    { return r.hostelID }
func (r ReservationRequest) Room() models.Room                   { return r.room }
func (r ReservationRequest) CheckIn() time.Time                  { return r.checkIn }
func (r ReservationRequest) CheckOut() time.Time                 { return r.checkOut }
func (r ReservationRequest) Seats() int                          { return r.seats }
func (r ReservationRequest) PaymentMethod() models.PaymentMethod { return r.method }

// Clamped reports whether the requested check-out was moved to the minimum stay.
func (r ReservationRequest) Clamped() bool { return r.clamped }

func (r ReservationRequest) Months() int {
	return models.MonthsBetween(r.checkIn, r.checkOut)
}

// Amount is the total price in major units.
func (r ReservationRequest) Amount() float64 {
	return models.TotalPrice(r.Months(), r.room.PricePerBed, r.seats)
}

func (r ReservationRequest) createRequest() models.CreateBookingRequest {
	return models.CreateBookingRequest{
		HostelID:      r.hostelID,
		RoomID:        r.room.ID,
		CheckInDate:   r.checkIn,
		CheckOutDate:  r.checkOut,
		SeatsBooked:   r.seats,
		PaymentStatus: models.PaymentPending,
		PaymentMethod: r.method,
		Amount:        r.Amount(),
	}
}

func (r ReservationRequest) confirmRequest(bookingID, paymentIntentID string) models.ConfirmBookingRequest {
	return models.ConfirmBookingRequest{
		BookingID:       bookingID,
		PaymentIntentID: paymentIntentID,
		HostelID:        r.hostelID,
		RoomID:          r.room.ID,
		CheckInDate:     r.checkIn,
		CheckOutDate:    r.checkOut,
		SeatsBooked:     r.seats,
		Amount:          r.Amount(),
	}
}
