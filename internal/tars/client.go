package tars

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

// WorkersAPI is the REST surface the workers store depends on.
type WorkersAPI interface {
	FetchWorkers(ctx context.Context) ([]Worker, error)
	PauseWorker(ctx context.Context, id string) error
	ResumeWorker(ctx context.Context, id string) error
}

// QueueAPI is the REST surface the queue store depends on.
type QueueAPI interface {
	FetchPendingTasks(ctx context.Context, start, length int) (Page[QueueTask], error)
	DeletePendingTask(ctx context.Context, id int64) error
}

// HistoryAPI is the REST surface the history store depends on.
type HistoryAPI interface {
	FetchHistoryTasks(ctx context.Context, start, length int) (Page[HistoryTask], error)
	DeleteCompletedTasks(ctx context.Context) error
}

// Ensure Client implements the store-facing interfaces at compile time.
var (
	_ WorkersAPI = (*Client)(nil)
	_ QueueAPI   = (*Client)(nil)
	_ HistoryAPI = (*Client)(nil)
)

// Client talks to the TARS REST API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultServerURL = "http://127.0.0.1:8888"
	defaultAPIBase   = "/unmanic/api/v2/"
	defaultUserAgent = "tarsdeck/0.1"
	defaultTimeout   = 5 * time.Second
)

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	ServerURL string
	APIBase   string
	Timeout   time.Duration
	UserAgent string
}

// NewClient builds a Client rooted at ServerURL + APIBase.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.ServerURL, opts.APIBase)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
	}, nil
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string {
	if c == nil || c.baseURL == nil {
		return ""
	}
	return c.baseURL.String()
}

// FetchWorkers retrieves the status of every worker.
func (c *Client) FetchWorkers(ctx context.Context) ([]Worker, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload WorkersResponse
	if err := c.do(ctx, http.MethodGet, "workers/status", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Workers, nil
}

// PauseWorker asks the server to pause one worker.
func (c *Client) PauseWorker(ctx context.Context, id string) error {
	return c.workerAction(ctx, id, "pause")
}

// ResumeWorker asks the server to resume one worker.
func (c *Client) ResumeWorker(ctx context.Context, id string) error {
	return c.workerAction(ctx, id, "resume")
}

func (c *Client) workerAction(ctx context.Context, id, action string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("worker id required")
	}
	return c.do(ctx, http.MethodPost, "workers/"+url.PathEscape(id)+"/"+action, nil, nil)
}

// FetchPendingTasks retrieves one page of the pending queue.
func (c *Client) FetchPendingTasks(ctx context.Context, start, length int) (Page[QueueTask], error) {
	if c == nil {
		return Page[QueueTask]{}, fmt.Errorf("client is nil")
	}
	var payload Page[QueueTask]
	body := PageRequest{Start: start, Length: length}
	if err := c.do(ctx, http.MethodPost, "pending/tasks", body, &payload); err != nil {
		return Page[QueueTask]{}, err
	}
	return payload, nil
}

// DeletePendingTask removes one task from the pending queue.
func (c *Client) DeletePendingTask(ctx context.Context, id int64) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("pending/tasks/%d", id), nil, nil)
}

// FetchHistoryTasks retrieves one page of completed tasks.
func (c *Client) FetchHistoryTasks(ctx context.Context, start, length int) (Page[HistoryTask], error) {
	if c == nil {
		return Page[HistoryTask]{}, fmt.Errorf("client is nil")
	}
	var payload Page[HistoryTask]
	body := PageRequest{Start: start, Length: length}
	if err := c.do(ctx, http.MethodPost, "history/tasks", body, &payload); err != nil {
		return Page[HistoryTask]{}, err
	}
	return payload, nil
}

// DeleteCompletedTasks drops every history record.
func (c *Client) DeleteCompletedTasks(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.do(ctx, http.MethodPost, "history/bulk_delete_completed", nil, nil)
}

// ReadSettings fetches the server settings document.
func (c *Client) ReadSettings(ctx context.Context) (Settings, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload struct {
		Settings Settings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodGet, "settings/read", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Settings, nil
}

// WriteSettings stores a settings document.
func (c *Client) WriteSettings(ctx context.Context, settings Settings) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	body := struct {
		Settings Settings `json:"settings"`
	}{Settings: settings}
	return c.do(ctx, http.MethodPost, "settings/write", body, nil)
}

// FetchGPUStatus retrieves GPU manager state.
func (c *Client) FetchGPUStatus(ctx context.Context) (GPUStatus, error) {
	if c == nil {
		return GPUStatus{}, fmt.Errorf("client is nil")
	}
	var payload GPUStatus
	if err := c.do(ctx, http.MethodGet, "health/gpu", nil, &payload); err != nil {
		return GPUStatus{}, err
	}
	return payload, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	rel := &url.URL{Path: path}
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s %s returned status %d", method, path, resp.StatusCode)
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(serverURL, apiBase string) (*url.URL, error) {
	trimmed := strings.TrimSpace(serverURL)
	if trimmed == "" {
		trimmed = defaultServerURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server_url %q: %w", serverURL, err)
	}
	base := strings.TrimSpace(apiBase)
	if base == "" {
		base = defaultAPIBase
	}
	u.Path = "/" + strings.Trim(base, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
