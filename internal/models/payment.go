package models

import (
	"errors"
	"strings"
)

var ErrIncompleteSession = errors.New("payment session requires an intent id and a client secret")

// PaymentSession is the processor handle for one pending booking. It lives
// only in memory and is never reused for another booking.
type PaymentSession struct {
	id           string
	clientSecret string
	amountMinor  int64
	currency     string
}

// NewPaymentSession builds a presentable session. Empty ids or secrets are rejected.
func NewPaymentSession(id, clientSecret string, amountMinor int64, currency string) (PaymentSession, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(clientSecret) == "" {
		return PaymentSession{}, ErrIncompleteSession
	}
	return PaymentSession{
		id:           id,
		clientSecret: clientSecret,
		amountMinor:  amountMinor,
		currency:     strings.ToLower(currency),
	}, nil
}

func (s PaymentSession) ID() string           { return s.id }
func (s PaymentSession) ClientSecret() string { return s.clientSecret }
func (s PaymentSession) AmountMinor() int64   { return s.amountMinor }
func (s PaymentSession) Currency() string     { return s.currency }

// Ready reports whether the session came from NewPaymentSession.
func (s PaymentSession) Ready() bool {
	return s.id != "" && s.clientSecret != ""
}

// OutcomeStatus is what the payment UI reported back.
type OutcomeStatus string

const (
	OutcomeSuccess   OutcomeStatus = "success"
	OutcomeCancelled OutcomeStatus = "cancelled"
	OutcomeError     OutcomeStatus = "error"
)

type PaymentOutcome struct {
	Status          OutcomeStatus `json:"status"`
	Message         string        `json:"message,omitempty"`
	PaymentIntentID string        `json:"paymentIntentId,omitempty"`
}

func (o PaymentOutcome) Succeeded() bool { return o.Status == OutcomeSuccess }

// PaymentIntentRequest is the body of POST /payment/create-payment-intent.
// Ids and seats travel as strings.
type PaymentIntentRequest struct {
	Amount      int64  `json:"amount"`
	HostelID    string `json:"hostelId"`
	RoomID      string `json:"roomId"`
	SeatsBooked int    `json:"seatsBooked,string"`
	Currency    string `json:"currency"`
}

type PaymentIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}
