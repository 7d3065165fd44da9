package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"hostellite/internal/models"
)

// The backend is inconsistent about envelopes: some handlers return the
// document itself, others wrap it under a key. Both shapes are accepted.

func decodeBooking(raw json.RawMessage) (*models.Booking, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &models.Booking{}, nil
	}
	var wrap struct {
		Booking *models.Booking `json:"booking"`
	}
	if err := json.Unmarshal(raw, &wrap); err == nil && wrap.Booking != nil {
		return wrap.Booking, nil
	}
	var b models.Booking
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode booking: %w", err)
	}
	return &b, nil
}

func decodeList[T any](raw json.RawMessage, key string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return items, nil
	}
	var wrap map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	inner, ok := wrap[key]
	if !ok {
		inner, ok = wrap["data"]
	}
	if !ok {
		return nil, fmt.Errorf("decode %s: no %q field in response", key, key)
	}
	var items []T
	if err := json.Unmarshal(inner, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return items, nil
}

// countItems returns the length of a list response without decoding its elements.
func countItems(raw json.RawMessage, key string) (int, error) {
	items, err := decodeList[json.RawMessage](raw, key)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}
