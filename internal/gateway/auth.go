package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}

// LoginResult is the outcome of a partner credential login.
type LoginResult struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Login exchanges the static partner credentials for an account-level bearer
// token. The gateway issues 24h tokens; callers apply their own safety margin.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	url := fmt.Sprintf("%s/api/v1/partner/login", c.baseURL)

	var resp loginResponse
	err := c.withRetry(ctx, "partner login", func() error {
		return c.doJSON(ctx, "partner login", http.MethodPost, url, "", loginRequest{
			Email:    email,
			Password: password,
		}, &resp)
	})
	if err != nil {
		return LoginResult{}, err
	}

	if resp.Token == "" {
		return LoginResult{}, &AuthenticationError{Reason: "login response carried no token"}
	}

	issuedAt := time.Now()
	expiresIn := resp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int((24 * time.Hour).Seconds())
	}

	return LoginResult{
		Token:     resp.Token,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(time.Duration(expiresIn) * time.Second),
	}, nil
}
