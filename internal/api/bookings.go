package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"hostellite/internal/domain"
	"hostellite/internal/models"
)

// CreateBooking reserves seats by creating a booking in pending payment status.
func (c *Client) CreateBooking(ctx context.Context, req models.CreateBookingRequest) (*models.Booking, error) {
	req.PaymentStatus = models.PaymentPending

	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "POST /bookings/book",
		path:   "/bookings/book",
		body:   req,
	}, &raw)
	if err != nil {
		return nil, err
	}

	b, err := decodeBooking(raw)
	if err != nil {
		return nil, domain.ServerError{StatusCode: http.StatusCreated, Msg: "unreadable booking", Err: err}
	}
	if b.ID == "" {
		return nil, domain.ServerError{StatusCode: http.StatusCreated, Msg: "booking created without id"}
	}
	c.logger.Info().Str("booking_id", b.ID).Str("room_id", req.RoomID).Int("seats", req.SeatsBooked).Msg("Booking created")
	return b, nil
}

// ConfirmBooking finalises a booking after a successful payment. It is not
// idempotent; call it at most once per payment.
func (c *Client) ConfirmBooking(ctx context.Context, req models.ConfirmBookingRequest) (*models.Booking, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "POST /payment/payment-success",
		path:   "/payment/payment-success",
		body:   req,
		mapErr: func(status int, msg string) error {
			switch status {
			case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
				return domain.ConfirmationError{BookingID: req.BookingID, PaymentIntentID: req.PaymentIntentID, Msg: msg}
			}
			return nil
		},
	}, &raw)
	if err != nil {
		return nil, err
	}

	b, err := decodeBooking(raw)
	if err != nil {
		// the server accepted the payment reference; the body is informational
		c.logger.Warn().Err(err).Str("booking_id", req.BookingID).Msg("Unreadable confirmation response")
		b = &models.Booking{}
	}
	if b.ID == "" {
		b.ID = req.BookingID
	}
	if b.Status == "" {
		b.Status = models.StatusConfirmed
	}
	return b, nil
}

// CancelBooking moves a booking to cancelled. Refunds are reconciled by the server.
func (c *Client) CancelBooking(ctx context.Context, bookingID string) error {
	if bookingID == "" {
		return domain.ValidationError{Field: "booking id", Msg: "is required"}
	}
	err := c.do(ctx, request{
		method: http.MethodDelete,
		route:  "DELETE /bookings/cancel/{id}",
		path:   "/bookings/cancel/" + url.PathEscape(bookingID),
		mapErr: func(status int, msg string) error {
			if status == http.StatusNotFound {
				return domain.NotFoundError{Resource: "booking", ID: bookingID}
			}
			return nil
		},
	}, nil)
	if err != nil {
		return err
	}
	c.logger.Info().Str("booking_id", bookingID).Msg("Booking cancelled")
	return nil
}

// ListUserBookings returns a snapshot of the caller's bookings in server order.
func (c *Client) ListUserBookings(ctx context.Context) ([]models.Booking, error) {
	return c.listBookings(ctx, "GET /bookings/user-bookings", "/bookings/user-bookings")
}

// ListOwnerBookings returns bookings for hostels owned by the caller.
func (c *Client) ListOwnerBookings(ctx context.Context) ([]models.Booking, error) {
	return c.listBookings(ctx, "GET /bookings/hostel-owner-bookings", "/bookings/hostel-owner-bookings")
}

// EligibleBookings lists the caller's bookings at a hostel that may be reviewed.
func (c *Client) EligibleBookings(ctx context.Context, hostelID string) ([]models.Booking, error) {
	if hostelID == "" {
		return nil, domain.ValidationError{Field: "hostel id", Msg: "is required"}
	}
	return c.listBookings(ctx, "GET /bookings/eligible-bookings/{hostelId}", "/bookings/eligible-bookings/"+url.PathEscape(hostelID))
}

func (c *Client) listBookings(ctx context.Context, route, path string) ([]models.Booking, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, route: route, path: path}, &raw); err != nil {
		return nil, err
	}
	bookings, err := decodeList[models.Booking](raw, "bookings")
	if err != nil {
		return nil, domain.ServerError{StatusCode: http.StatusOK, Msg: "unreadable booking list", Err: err}
	}
	return bookings, nil
}
