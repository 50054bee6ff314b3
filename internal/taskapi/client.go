package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/board"
	"taskboard/internal/models"
)

// APIError is a non-success response the client could not classify further.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("task api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("task api: status %d: %s", e.StatusCode, e.Message)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the park API's task collection of one kind.
type Client struct {
	base   *url.URL
	kind   models.TaskKind
	token  string
	http   *http.Client
	logger *slog.Logger
}

// New returns a client for the tasks of the given kind.
func New(kind models.TaskKind, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("empty task api base url")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse task api base url: %w", err)
	}
	if _, err := models.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{base: base, kind: kind, token: opts.Token, http: hc, logger: logger}, nil
}

// collection is the API path segment for the client's task kind.
func (c *Client) collection() string {
	if c.kind == models.KindPlant {
		return "planttasks"
	}
	return "maintenancetasks"
}

func (c *Client) endpoint(parts ...string) string {
	u := *c.base
	segs := append([]string{c.collection()}, parts...)
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(segs, "/")
	return u.String()
}

// ListTasks fetches the tasks matching q.
func (c *Client) ListTasks(ctx context.Context, q models.TaskQuery) ([]models.Task, error) {
	params := url.Values{}
	if q.ParkID != 0 {
		params.Set("parkId", strconv.FormatInt(q.ParkID, 10))
	}
	if q.AssignedStaffID != "" {
		params.Set("assignedStaffId", q.AssignedStaffID)
	}
	if q.SubmittingStaffID != "" {
		params.Set("submittingStaffId", q.SubmittingStaffID)
	}
	target := c.endpoint()
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var wire []wireTask
	if err := c.do(ctx, http.MethodGet, target, nil, &wire); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return toModels(c.kind, wire), nil
}

// Assign gives the task to staffID.
func (c *Client) Assign(ctx context.Context, taskID, staffID string) error {
	return c.do(ctx, http.MethodPost, c.endpoint(taskID, "assign"), assignRequest{StaffID: staffID}, nil)
}

// Unassign clears the task's assignee on behalf of staffID.
func (c *Client) Unassign(ctx context.Context, taskID, staffID string) error {
	return c.do(ctx, http.MethodPost, c.endpoint(taskID, "unassign"), assignRequest{StaffID: staffID}, nil)
}

// UpdateStatus moves the task to status; the API re-validates the transition.
func (c *Client) UpdateStatus(ctx context.Context, taskID string, status models.TaskStatus, actingStaffID string) error {
	return c.do(ctx, http.MethodPut, c.endpoint(taskID, "status"), statusRequest{Status: status, ActingStaffID: actingStaffID}, nil)
}

// UpdatePosition ranks the task at index within its current column.
func (c *Client) UpdatePosition(ctx context.Context, taskID string, index int) error {
	return c.do(ctx, http.MethodPut, c.endpoint(taskID, "position"), positionRequest{Index: index}, nil)
}

// Delete removes a task.
func (c *Client) Delete(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, c.endpoint(taskID), nil, nil)
}

// DeleteByStatus removes every task in one column.
func (c *Client) DeleteByStatus(ctx context.Context, status models.TaskStatus) error {
	target := c.endpoint() + "?" + url.Values{"status": {string(status)}}.Encode()
	return c.do(ctx, http.MethodDelete, target, nil, nil)
}

func (c *Client) do(ctx context.Context, method, target string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("task api unreachable",
			slog.String("method", method),
			slog.String("url", target),
			slog.String("request_id", reqID),
			slog.String("error", err.Error()))
		return fmt.Errorf("%s %s: %w: %v", method, req.URL.Path, board.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("task api call",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", reqID),
		slog.Duration("took", time.Since(start)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return classify(method, req.URL.Path, resp)
}

// classify maps an error response onto the board's error kinds.
func classify(method, path string, resp *http.Response) error {
	var eb errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &eb); err != nil {
			eb.Error = strings.TrimSpace(string(raw))
		}
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: eb.Error, Code: eb.Code}

	var kind error
	switch {
	case resp.StatusCode == http.StatusConflict || eb.Code == "CONFLICT":
		kind = board.ErrConflict
	case resp.StatusCode == http.StatusUnprocessableEntity || eb.Code == "INVALID_TRANSITION":
		kind = board.ErrInvalidTransition
	case resp.StatusCode == http.StatusNotFound:
		kind = board.ErrNotFound
	case resp.StatusCode == http.StatusForbidden:
		kind = board.ErrForbidden
	case resp.StatusCode >= 500:
		kind = board.ErrNetworkFailure
	default:
		return fmt.Errorf("%s %s: %w", method, path, apiErr)
	}
	return fmt.Errorf("%s %s: %w: %w", method, path, kind, apiErr)
}

// AsAPIError extracts the API response carried by err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
