package api

import (
	"context"
	"net/http"

	"hostellite/internal/models"
)

// CreatePaymentIntent asks the backend to open a processor payment intent.
// Amount must already be in minor units.
func (c *Client) CreatePaymentIntent(ctx context.Context, req models.PaymentIntentRequest) (*models.PaymentIntentResponse, error) {
	var resp models.PaymentIntentResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "POST /payment/create-payment-intent",
		path:   "/payment/create-payment-intent",
		body:   req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
