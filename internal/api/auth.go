package api

import (
	"context"
	"net/http"
	"strings"

	"hostellite/internal/domain"
	"hostellite/internal/models"
)

// Login exchanges email and password for a bearer token. It does not touch
// the session; the caller stores the result.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, domain.ValidationError{Msg: "email and password are required"}
	}

	var resp models.LoginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "POST /users/login",
		path:   "/users/login",
		body:   models.LoginRequest{Email: email, Password: password},
		public: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, domain.AuthError{Msg: "login response carried no token"}
	}
	return &resp, nil
}
