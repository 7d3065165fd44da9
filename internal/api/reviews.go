package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"hostellite/internal/domain"
	"hostellite/internal/models"
)

// CreateReview posts a review for a completed stay. The booking must be one
// of EligibleBookings for the hostel.
func (c *Client) CreateReview(ctx context.Context, req models.ReviewRequest) (*models.Review, error) {
	if err := validateReview(req); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "POST /reviews/add",
		path:   "/reviews/add",
		body:   req,
	}, &raw)
	if err != nil {
		return nil, err
	}

	var wrap struct {
		Review *models.Review `json:"review"`
	}
	if err := json.Unmarshal(raw, &wrap); err == nil && wrap.Review != nil {
		return wrap.Review, nil
	}
	var review models.Review
	_ = json.Unmarshal(raw, &review)
	return &review, nil
}

func validateReview(req models.ReviewRequest) error {
	switch {
	case req.HostelID == "":
		return domain.ValidationError{Field: "hostel id", Msg: "is required"}
	case req.BookingID == "":
		return domain.ValidationError{Field: "booking id", Msg: "is required"}
	case req.Rating < 1 || req.Rating > 5:
		return domain.ValidationError{Field: "rating", Msg: "must be between 1 and 5"}
	case strings.TrimSpace(req.Title) == "":
		return domain.ValidationError{Field: "title", Msg: "is required"}
	case strings.TrimSpace(req.Comment) == "":
		return domain.ValidationError{Field: "comment", Msg: "is required"}
	}
	return nil
}
