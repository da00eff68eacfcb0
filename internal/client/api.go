// Package client is the member-side mirror of the presence status: an HTTP
// API client plus a controller that applies changes optimistically.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/msomdec/workville/internal/domain"
)

// Session is a work session as returned by the server.
type Session struct {
	ID              int64      `json:"id"`
	Date            string     `json:"date"`
	CheckInTime     time.Time  `json:"checkInTime"`
	CheckOutTime    *time.Time `json:"checkOutTime,omitempty"`
	DurationMinutes *int       `json:"durationMinutes,omitempty"`
}

// Snapshot is the body of GET /status.
type Snapshot struct {
	Status               domain.Status `json:"status"`
	LastUpdated          *time.Time    `json:"lastUpdated"`
	TodaySessions        []Session     `json:"todaySessions"`
	TotalDurationMinutes int           `json:"totalDurationMinutes"`
}

// SetResult is the body of a successful POST /status.
type SetResult struct {
	Success        bool          `json:"success"`
	Status         domain.Status `json:"status"`
	PreviousStatus domain.Status `json:"previousStatus"`
	Message        string        `json:"message"`
}

// StatusAPI is the server surface the controller depends on.
type StatusAPI interface {
	GetStatus(ctx context.Context) (*Snapshot, error)
	SetStatus(ctx context.Context, status domain.Status, workLog string) (*SetResult, error)
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server responded %d", e.StatusCode)
	}
	return fmt.Sprintf("server responded %d: %s", e.StatusCode, e.Message)
}

// HTTPStatusAPI talks to a workville server with a bearer token.
type HTTPStatusAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPStatusAPI creates an API client. A nil client uses
// http.DefaultClient; request deadlines come from the caller's context.
func NewHTTPStatusAPI(baseURL, token string, client *http.Client) *HTTPStatusAPI {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStatusAPI{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: client}
}

// GetStatus fetches the member's current status snapshot.
func (a *HTTPStatusAPI) GetStatus(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := a.do(ctx, http.MethodGet, "/status", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SetStatus requests a status transition.
func (a *HTTPStatusAPI) SetStatus(ctx context.Context, status domain.Status, workLog string) (*SetResult, error) {
	body := map[string]string{"status": string(status)}
	if workLog != "" {
		body["workLog"] = workLog
	}
	var res SetResult
	if err := a.do(ctx, http.MethodPost, "/status", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Login exchanges credentials for a token.
func Login(ctx context.Context, client *http.Client, baseURL, email, password string) (string, error) {
	api := NewHTTPStatusAPI(baseURL, "", client)
	var res struct {
		Token string `json:"token"`
	}
	err := api.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &res)
	if err != nil {
		return "", err
	}
	if res.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return res.Token, nil
}

func (a *HTTPStatusAPI) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
