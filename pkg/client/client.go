// Package client is a Go client for the GRC API. It keeps the caller's
// session token and attaches it to every authenticated call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to one GRC API deployment.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// User is the summary returned by register and login.
type User struct {
	ID         string `json:"_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Token      string `json:"token,omitempty"`
}

// Error is a non-2xx response. Message is the server's "error" field.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// New returns a client for baseURL; an empty baseURL means a local server.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Login exchanges credentials for a session token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var u User
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &u); err != nil {
		return nil, err
	}
	c.Token = u.Token
	return &u, nil
}

// Register creates an account and keeps the returned session token. An empty role lets the server pick the default.
func (c *Client) Register(ctx context.Context, username, email, password, role string) (*User, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	if role != "" {
		body["role"] = role
	}
	var u User
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &u); err != nil {
		return nil, err
	}
	c.Token = u.Token
	return &u, nil
}

// Profile returns the caller's own record.
func (c *Client) Profile(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	return out, c.do(ctx, http.MethodGet, "/api/auth/profile", nil, &out)
}

// List decodes every record of resource (e.g. "risks") into out.
func (c *Client) List(ctx context.Context, resource string, out any) error {
	return c.do(ctx, http.MethodGet, "/api/"+url.PathEscape(resource), nil, out)
}

func (c *Client) Get(ctx context.Context, resource, id string, out any) error {
	return c.do(ctx, http.MethodGet, recordPath(resource, id), nil, out)
}

func (c *Client) Create(ctx context.Context, resource string, in, out any) error {
	return c.do(ctx, http.MethodPost, "/api/"+url.PathEscape(resource), in, out)
}

func (c *Client) Update(ctx context.Context, resource, id string, in, out any) error {
	return c.do(ctx, http.MethodPut, recordPath(resource, id), in, out)
}

// Delete removes a record and returns the server's confirmation message.
func (c *Client) Delete(ctx context.Context, resource, id string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodDelete, recordPath(resource, id), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Attest records the caller's acknowledgement of a policy.
func (c *Client) Attest(ctx context.Context, policyID string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, recordPath("policies", policyID)+"/attest", nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func recordPath(resource, id string) string {
	return "/api/" + url.PathEscape(resource) + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{Status: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		} else {
			apiErr.Message = resp.Status
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
