package routine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPToggler posts toggles to the toggle endpoint of a family-ops server.
type HTTPToggler struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewHTTPToggler creates an HTTPToggler for the server at baseURL. token is
// sent as a bearer token when set.
func NewHTTPToggler(baseURL, token string) *HTTPToggler {
	return &HTTPToggler{
		endpoint:   strings.TrimRight(baseURL, "/") + "/v1/routines/toggle",
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Toggle sends req. 400 and 404 answers map to ErrBadRequest and ErrNotFound,
// 401 and 403 to ErrUnauthorized.
func (t *HTTPToggler) Toggle(ctx context.Context, req ToggleRequest) (ToggleResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ToggleResult{}, fmt.Errorf("failed to marshal toggle: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return ToggleResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return ToggleResult{}, fmt.Errorf("failed to send toggle: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		ToggleResult
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return ToggleResult{}, fmt.Errorf("failed to read toggle response: %w", err)
	}
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode == http.StatusOK {
		if decodeErr != nil {
			return ToggleResult{}, fmt.Errorf("failed to decode toggle response: %w", decodeErr)
		}
		if !out.Success {
			return ToggleResult{}, fmt.Errorf("toggle rejected: %s", string(raw))
		}
		return out.ToggleResult, nil
	}

	// Error bodies from proxies are often not JSON.
	msg := out.Error
	if decodeErr != nil || msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return ToggleResult{}, fmt.Errorf("%w: %s", ErrBadRequest, msg)
	case http.StatusNotFound:
		return ToggleResult{}, fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return ToggleResult{}, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	default:
		return ToggleResult{}, fmt.Errorf("toggle endpoint returned %d: %s", resp.StatusCode, msg)
	}
}

// Client is the caller-side toggler. It drops a toggle while another one
// for the same task is outstanding and falls back to a local engine when
// the primary toggler fails for reasons other than bad input or rejected
// credentials.
type Client struct {
	primary  Toggler
	fallback Toggler
	guard    Guard
	logger   *slog.Logger
}

// NewClient creates a Client. primary may be nil to always use fallback.
func NewClient(primary, fallback Toggler, guard Guard, logger *slog.Logger) *Client {
	if guard == nil {
		guard = NewLocalGuard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{primary: primary, fallback: fallback, guard: guard, logger: logger}
}

func (c *Client) Toggle(ctx context.Context, req ToggleRequest) (ToggleResult, error) {
	if req.TaskIndex == nil {
		return ToggleResult{}, fmt.Errorf("%w: missing required fields", ErrBadRequest)
	}
	key := req.RoutineID + ":" + strconv.Itoa(*req.TaskIndex)
	release, ok, err := c.guard.TryAcquire(ctx, key)
	if err != nil {
		return ToggleResult{}, fmt.Errorf("failed to acquire toggle guard: %w", err)
	}
	if !ok {
		return ToggleResult{}, fmt.Errorf("%w: %s", ErrToggleInFlight, key)
	}
	defer release()

	if c.primary == nil {
		return c.fallback.Toggle(ctx, req)
	}
	res, err := c.primary.Toggle(ctx, req)
	if err == nil || isDomainError(err) {
		return res, err
	}
	c.logger.Warn("routine.toggle.primary_failed", "routine_id", req.RoutineID, "task_index", *req.TaskIndex, "err", err)
	return c.fallback.Toggle(ctx, req)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrBadRequest) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized)
}
