package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hostellite/internal/config"
	"hostellite/internal/domain"
	"hostellite/internal/logging"
	"hostellite/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const maxErrorBody = 64 << 10

// Client talks to the hostel marketplace REST backend. Authenticated calls
// read the bearer token from the injected TokenSource on every request. When
// the source is also a SessionStore, a 401 on an authenticated call clears it.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	tokens     domain.TokenSource
	limiter    *routeLimiter
	logger     *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client (tests point it at httptest).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(cfg config.APIConfig, tokens domain.TokenSource, logger *zerolog.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		limiter:    newRouteLimiter(cfg.RateLimit),
		logger:     logging.Component(logger, "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UseRedisCache configures optional Redis caching for read-only GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// request describes one backend call. route is the low-cardinality label used
// for metrics and logs, path the concrete URL path.
type request struct {
	method string
	route  string
	path   string
	body   any
	public bool
	mapErr func(status int, msg string) error
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	if err := c.limiter.wait(ctx, r.route); err != nil {
		return domain.NetworkError{Op: r.route, Err: err}
	}

	var token string
	if !r.public {
		if c.tokens == nil {
			return domain.AuthError{Msg: "no session"}
		}
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		token = t
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", r.route, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", r.route, err)
	}
	requestID := uuid.NewString()
	c.addHeaders(req, token, requestID)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveAPI(r.route, 0, time.Since(start))
		c.logger.Warn().Err(err).Str("route", r.route).Str("request_id", requestID).Msg("Request failed")
		return domain.NetworkError{Op: r.route, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveAPI(r.route, resp.StatusCode, time.Since(start))

	c.logger.Debug().
		Str("route", r.route).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Dur("elapsed", time.Since(start)).
		Msg("Request finished")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := errorMessage(resp.StatusCode, raw)
		if resp.StatusCode == http.StatusUnauthorized && !r.public {
			c.dropSession(ctx, r.route)
		}
		if r.mapErr != nil {
			if mapped := r.mapErr(resp.StatusCode, msg); mapped != nil {
				return mapped
			}
		}
		return statusError(resp.StatusCode, msg)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NetworkError{Op: r.route, Err: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.ServerError{StatusCode: resp.StatusCode, Msg: "malformed response body", Err: err}
	}
	return nil
}

// dropSession forgets the stored credential so the next command asks for a
// fresh login instead of resending a rejected token.
func (c *Client) dropSession(ctx context.Context, route string) {
	store, ok := c.tokens.(domain.SessionStore)
	if !ok {
		return
	}
	if err := store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn().Err(err).Str("route", route).Msg("Failed to clear session after 401")
		return
	}
	c.logger.Info().Str("route", route).Msg("Session cleared after 401")
}

func (c *Client) addHeaders(req *http.Request, token, requestID string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// errorMessage pulls "message" or "error" out of a JSON error body and falls
// back to the raw text or the status phrase.
func errorMessage(status int, raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return http.StatusText(status)
}

func statusError(status int, msg string) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ValidationError{Msg: msg}
	case http.StatusUnauthorized:
		return domain.AuthError{Msg: msg}
	case http.StatusNotFound:
		return domain.NotFoundError{Err: errors.New(msg)}
	default:
		return domain.ServerError{StatusCode: status, Msg: msg}
	}
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) dropCache(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, key).Err()
}
