// Package api is the request/response side of the backend connection.
// Reads fetch snapshots to seed or resync the store; writes (prompts,
// approval replies) return quickly and their effects arrive through the
// event stream, never through the response body.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dilaghq/mirror/internal/backoff"
	"github.com/dilaghq/mirror/pkg/models"
)

// Client talks to the backend control surface over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	policy  backoff.Policy
	retries int
}

// Config configures a Client.
type Config struct {
	// BaseURL of the backend server, e.g. http://127.0.0.1:4096.
	BaseURL string

	// Client overrides the HTTP client. Defaults to a 30s-timeout client.
	Client *http.Client

	// Retries bounds attempts for idempotent reads. Writes are never
	// retried. Defaults to 3.
	Retries int

	Logger *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("base URL required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: base,
		client:  httpClient,
		logger:  logger.With("component", "api"),
		policy:  backoff.Request(),
		retries: retries,
	}, nil
}

// Session is the backend's session resource.
type Session struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Directory string `json:"directory,omitempty"`
	Version   string `json:"version,omitempty"`
	Time      struct {
		Created int64 `json:"created,omitempty"`
		Updated int64 `json:"updated,omitempty"`
	} `json:"time"`
}

// MessageWithParts is one entry of a message snapshot.
type MessageWithParts struct {
	Info  models.Message `json:"info"`
	Parts []models.Part  `json:"parts"`
}

// ListSessions fetches all sessions known to the backend.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	return getJSON[[]Session](ctx, c, "/session")
}

// GetSession fetches one session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (Session, error) {
	return getJSON[Session](ctx, c, "/session/"+url.PathEscape(sessionID))
}

// CreateSession creates a session with an optional title.
func (c *Client) CreateSession(ctx context.Context, title string) (Session, error) {
	body := map[string]string{}
	if title != "" {
		body["title"] = title
	}
	var out Session
	if err := c.post(ctx, "/session", body, &out); err != nil {
		return Session{}, err
	}
	return out, nil
}

// DeleteSession removes a session on the backend.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/session/"+url.PathEscape(sessionID), nil, nil)
}

// Messages fetches the full message+part snapshot for a session. This is
// the resync read issued after a reconnect.
func (c *Client) Messages(ctx context.Context, sessionID string) ([]MessageWithParts, error) {
	return getJSON[[]MessageWithParts](ctx, c, "/session/"+url.PathEscape(sessionID)+"/message")
}

// Prompt sends user text into a session. The resulting assistant output
// arrives via the event stream.
func (c *Client) Prompt(ctx context.Context, sessionID, text string) error {
	body := map[string]any{
		"parts": []map[string]string{{"type": "text", "text": text}},
	}
	return c.post(ctx, "/session/"+url.PathEscape(sessionID)+"/message", body, nil)
}

// Abort interrupts a running session.
func (c *Client) Abort(ctx context.Context, sessionID string) error {
	return c.post(ctx, "/session/"+url.PathEscape(sessionID)+"/abort", nil, nil)
}

// PermissionReply answers a pending permission request.
func (c *Client) PermissionReply(ctx context.Context, sessionID, requestID string, approve bool) error {
	response := "reject"
	if approve {
		response = "once"
	}
	path := "/session/" + url.PathEscape(sessionID) + "/permissions/" + url.PathEscape(requestID)
	return c.post(ctx, path, map[string]string{"response": response}, nil)
}

// QuestionReply answers a pending question with one of its options.
func (c *Client) QuestionReply(ctx context.Context, requestID, answer string) error {
	path := "/question/" + url.PathEscape(requestID) + "/reply"
	return c.post(ctx, path, map[string]string{"answer": answer}, nil)
}

// QuestionReject dismisses a pending question without answering.
func (c *Client) QuestionReject(ctx context.Context, requestID string) error {
	return c.post(ctx, "/question/"+url.PathEscape(requestID)+"/reject", nil, nil)
}

// getJSON performs a retried GET and decodes the response body.
func getJSON[T any](ctx context.Context, c *Client, path string) (T, error) {
	return backoff.Retry(ctx, c.policy, c.retries, func(attempt int) (T, error) {
		var out T
		if attempt > 1 {
			c.logger.Debug("retrying request", "path", path, "attempt", attempt)
		}
		err := c.do(ctx, http.MethodGet, path, nil, &out)
		return out, err
	})
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// StatusError is a non-2xx control-surface response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}
