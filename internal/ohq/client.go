package ohq

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

// API defines the server operations the rest of the client depends
// on. Implemented by *Client; stub implementations serve in tests.
type API interface {
	ListQueues(ctx context.Context, courseID int64) ([]Queue, error)
	GetQueue(ctx context.Context, courseID, queueID int64) (*Queue, error)
	UpdateQueue(ctx context.Context, courseID, queueID int64, patch QueuePatch) (*Queue, error)
	ListQuestions(ctx context.Context, courseID, queueID int64) ([]Question, error)
	GetQuestion(ctx context.Context, courseID, queueID, questionID int64) (*Question, error)
	CreateQuestion(ctx context.Context, courseID, queueID int64, draft QuestionDraft) (*Question, error)
	UpdateQuestion(ctx context.Context, courseID, queueID, questionID int64, patch QuestionPatch) (*Question, error)
	GetPosition(ctx context.Context, courseID, queueID, questionID int64) (Position, error)
	ClearQueue(ctx context.Context, courseID, queueID int64) error
	MassInvite(ctx context.Context, courseID int64, emails []string, kind string) error
	CurrentUser(ctx context.Context) (*Profile, error)
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// Client talks to the office hours queue HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	token     string
	userAgent string
}

const (
	defaultUserAgent = "ohqtui/0.1"
	requestTimeout   = 10 * time.Second
)

// NewClient builds a Client for the given server base URL. token may
// be empty when the server handles auth by other means.
func NewClient(server, token string) (*Client, error) {
	base, err := parseBaseURL(server)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		token:     token,
		userAgent: defaultUserAgent,
	}, nil
}

// ListQueues retrieves the non-archived queues of a course.
func (c *Client) ListQueues(ctx context.Context, courseID int64) ([]Queue, error) {
	var queues []Queue
	path := fmt.Sprintf("/api/courses/%d/queues/", courseID)
	if err := c.do(ctx, http.MethodGet, path, nil, &queues); err != nil {
		return nil, err
	}
	return queues, nil
}

// GetQueue retrieves a single queue with its server-computed counts
// and wait estimate.
func (c *Client) GetQueue(ctx context.Context, courseID, queueID int64) (*Queue, error) {
	var queue Queue
	path := fmt.Sprintf("/api/courses/%d/queues/%d/", courseID, queueID)
	if err := c.do(ctx, http.MethodGet, path, nil, &queue); err != nil {
		return nil, err
	}
	return &queue, nil
}

// UpdateQueue applies a partial update and returns the server's copy.
func (c *Client) UpdateQueue(ctx context.Context, courseID, queueID int64, patch QueuePatch) (*Queue, error) {
	var queue Queue
	path := fmt.Sprintf("/api/courses/%d/queues/%d/", courseID, queueID)
	if err := c.do(ctx, http.MethodPatch, path, patch, &queue); err != nil {
		return nil, err
	}
	return &queue, nil
}

// ListQuestions retrieves the open questions of a queue in FIFO order.
func (c *Client) ListQuestions(ctx context.Context, courseID, queueID int64) ([]Question, error) {
	var questions []Question
	path := fmt.Sprintf("/api/courses/%d/queues/%d/questions/", courseID, queueID)
	if err := c.do(ctx, http.MethodGet, path, nil, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// GetQuestion retrieves a single question.
func (c *Client) GetQuestion(ctx context.Context, courseID, queueID, questionID int64) (*Question, error) {
	var question Question
	path := fmt.Sprintf("/api/courses/%d/queues/%d/questions/%d/", courseID, queueID, questionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &question); err != nil {
		return nil, err
	}
	return &question, nil
}

// CreateQuestion submits a new question to a queue.
func (c *Client) CreateQuestion(ctx context.Context, courseID, queueID int64, draft QuestionDraft) (*Question, error) {
	var question Question
	path := fmt.Sprintf("/api/courses/%d/queues/%d/questions/", courseID, queueID)
	if err := c.do(ctx, http.MethodPost, path, draft, &question); err != nil {
		return nil, err
	}
	return &question, nil
}

// UpdateQuestion applies a partial update, including lifecycle
// transitions carried in the Status field. The server is the
// serialization point for concurrent staff actions; a refused
// transition comes back as an error satisfying IsInvalidTransition.
func (c *Client) UpdateQuestion(ctx context.Context, courseID, queueID, questionID int64, patch QuestionPatch) (*Question, error) {
	var question Question
	path := fmt.Sprintf("/api/courses/%d/queues/%d/questions/%d/", courseID, queueID, questionID)
	if err := c.do(ctx, http.MethodPatch, path, patch, &question); err != nil {
		return nil, err
	}
	return &question, nil
}

// GetPosition retrieves the asker's place in line. The server owns
// this computation; the client only re-derives it for display between
// fetches.
func (c *Client) GetPosition(ctx context.Context, courseID, queueID, questionID int64) (Position, error) {
	var pos Position
	path := fmt.Sprintf("/api/courses/%d/queues/%d/questions/%d/position/", courseID, queueID, questionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &pos); err != nil {
		return Position{Position: -1}, err
	}
	return pos, nil
}

// ClearQueue bulk-rejects every waiting question in a queue.
func (c *Client) ClearQueue(ctx context.Context, courseID, queueID int64) error {
	path := fmt.Sprintf("/api/courses/%d/queues/%d/clear/", courseID, queueID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// MassInvite invites a batch of email addresses to the course with
// the given role.
func (c *Client) MassInvite(ctx context.Context, courseID int64, emails []string, kind string) error {
	payload := struct {
		Emails string `json:"emails"`
		Kind   string `json:"kind"`
	}{Emails: strings.Join(emails, ","), Kind: kind}
	path := fmt.Sprintf("/api/courses/%d/mass-invite/", courseID)
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

// CurrentUser retrieves the authenticated user's profile and course
// memberships.
func (c *Client) CurrentUser(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, http.MethodGet, "/api/accounts/me/", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), payload)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readDetail extracts the error message from a rejection body. The
// server sends {"detail": "..."}; anything else is used as-is.
func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var wrapped struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Detail != "" {
		return wrapped.Detail
	}
	return strings.TrimSpace(string(raw))
}

func parseBaseURL(server string) (*url.URL, error) {
	trimmed := strings.TrimSpace(server)
	if trimmed == "" {
		return nil, fmt.Errorf("server url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", server, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
