package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"hostellite/internal/models"
)

type adminSource struct {
	name string
	path string
	key  string
	set  func(s *models.AdminSummary, n int)
}

var adminSources = []adminSource{
	{"hostels", "/hostels/all", "hostels", func(s *models.AdminSummary, n int) { s.TotalHostels = n }},
	{"users", "/users/all-users", "users", func(s *models.AdminSummary, n int) { s.TotalUsers = n }},
	{"bookings", "/bookings", "bookings", func(s *models.AdminSummary, n int) { s.TotalBookings = n }},
	{"pending", "/hostels/pending", "hostels", func(s *models.AdminSummary, n int) { s.PendingApprovals = n }},
}

// AdminDashboard fetches the moderation counters concurrently. A failing
// source is reported in Errors and leaves its counter at zero; only a total
// failure is returned as an error.
func (c *Client) AdminDashboard(ctx context.Context) (*models.AdminSummary, error) {
	summary := &models.AdminSummary{}
	errs := make([]error, len(adminSources))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i, src := range adminSources {
		wg.Add(1)
		go func(i int, src adminSource) {
			defer wg.Done()

			var raw json.RawMessage
			err := c.do(ctx, request{method: http.MethodGet, route: "GET " + src.path, path: src.path}, &raw)
			var n int
			if err == nil {
				n, err = countItems(raw, src.key)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[i] = err
				return
			}
			src.set(summary, n)
		}(i, src)
	}
	wg.Wait()

	var first error
	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		failed++
		if summary.Errors == nil {
			summary.Errors = make(map[string]string)
		}
		summary.Errors[adminSources[i].name] = err.Error()
	}

	if failed == len(adminSources) {
		return summary, first
	}
	if failed > 0 {
		c.logger.Warn().Interface("errors", summary.Errors).Msg("Admin dashboard partially loaded")
	}
	return summary, nil
}
