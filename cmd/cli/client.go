package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/and161185/userservice/internal/convert"
)

// apiError is a non-2xx answer from the service.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// client talks JSON to the identity service. Connection failures, 429 and 5xx
// answers are retried with backoff.
type client struct {
	base   string
	http   *retryablehttp.Client
	bearer string
}

func newClient(base string, timeout time.Duration) *client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = timeout
	return &client{base: strings.TrimRight(base, "/"), http: rc}
}

func (c *client) withBearer(tok string) *client {
	cp := *c
	cp.bearer = tok
	return &cp
}

func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e convert.Error
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return &apiError{Status: resp.StatusCode, Message: e.Message}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) register(ctx context.Context, req convert.RegisterRequest) (convert.User, error) {
	var u convert.User
	err := c.do(ctx, http.MethodPost, "/v1/auth/register", req, &u)
	return u, err
}

func (c *client) login(ctx context.Context, identity, password string) (convert.LoginResponse, error) {
	var out convert.LoginResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", convert.LoginRequest{Identity: identity, Password: password}, &out)
	return out, err
}

func (c *client) refresh(ctx context.Context, refreshToken string) (convert.RefreshResponse, error) {
	var out convert.RefreshResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/refresh", convert.RefreshRequest{RefreshToken: refreshToken}, &out)
	return out, err
}

func (c *client) logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
}

func (c *client) me(ctx context.Context) (convert.User, error) {
	var u convert.User
	err := c.do(ctx, http.MethodGet, "/v1/users/me", nil, &u)
	return u, err
}

func (c *client) assign(ctx context.Context, userID, unitID string) error {
	return c.do(ctx, http.MethodPut, "/v1/users/"+userID+"/business-unit", convert.AssignBusinessUnitRequest{BusinessUnitID: unitID}, nil)
}

func (c *client) unitName(ctx context.Context, unitID string) (convert.BusinessUnitName, error) {
	var out convert.BusinessUnitName
	err := c.do(ctx, http.MethodGet, "/v1/business-units/"+unitID+"/name", nil, &out)
	return out, err
}
