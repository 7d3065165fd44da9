package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"hostellite/internal/domain"
	"hostellite/internal/metrics"
	"hostellite/internal/models"
)

const roomsRoute = "GET /rooms/hostel/{hostelId}"

func roomsCacheKey(hostelID string) string {
	return "hostellite:rooms:" + hostelID
}

// ListRooms returns the rooms of a hostel. Availability is advisory and may
// be served from the Redis cache for up to the configured TTL.
func (c *Client) ListRooms(ctx context.Context, hostelID string) ([]models.Room, error) {
	if hostelID == "" {
		return nil, domain.ValidationError{Field: "hostel id", Msg: "is required"}
	}

	cacheKey := roomsCacheKey(hostelID)
	var rooms []models.Room
	if c.readCache(ctx, cacheKey, &rooms) {
		metrics.IncCacheHit(roomsRoute)
		return rooms, nil
	}

	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		route:  roomsRoute,
		path:   "/rooms/hostel/" + url.PathEscape(hostelID),
	}, &raw)
	if err != nil {
		return nil, err
	}
	rooms, err = decodeList[models.Room](raw, "rooms")
	if err != nil {
		return nil, domain.ServerError{StatusCode: http.StatusOK, Msg: "unreadable room list", Err: err}
	}

	c.writeCache(ctx, cacheKey, rooms)
	return rooms, nil
}

// FindRoom looks a room up by id within a hostel.
func (c *Client) FindRoom(ctx context.Context, hostelID, roomID string) (*models.Room, error) {
	rooms, err := c.ListRooms(ctx, hostelID)
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		if rooms[i].ID == roomID {
			return &rooms[i], nil
		}
	}
	return nil, domain.NotFoundError{Resource: "room", ID: roomID}
}

// InvalidateRooms drops the cached room list so the next read sees fresh availability.
func (c *Client) InvalidateRooms(ctx context.Context, hostelID string) {
	c.dropCache(ctx, roomsCacheKey(hostelID))
}
