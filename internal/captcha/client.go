package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/heir-finder/internal/poll"
)

// ErrUnsolved wraps every failure to obtain a token.
var ErrUnsolved = errors.New("captcha not solved")

// DefaultBaseURL is the CapSolver API endpoint.
const DefaultBaseURL = "https://api.capsolver.com"

// Config controls the vendor client.
type Config struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Solver exchanges a detected challenge for a token.
type Solver interface {
	Solve(ctx context.Context, kind Kind, siteKey, pageURL string) (string, error)
}

// Client talks to the CapSolver createTask/getTaskResult API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a Client. A nil httpClient uses a client with a 30s timeout.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("captcha api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 180 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}, nil
}

type task struct {
	Type       Kind   `json:"type"`
	WebsiteURL string `json:"websiteURL"`
	WebsiteKey string `json:"websiteKey"`
}

type createTaskRequest struct {
	ClientKey string `json:"clientKey"`
	Task      task   `json:"task"`
}

type createTaskResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	TaskID           string `json:"taskId"`
}

type taskResultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    string `json:"taskId"`
}

type taskResultResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorDescription string `json:"errorDescription"`
	Status           string `json:"status"`
	Solution         struct {
		GRecaptchaResponse string `json:"gRecaptchaResponse"`
		Token              string `json:"token"`
	} `json:"solution"`
}

// Solve creates a vendor task and polls for its result. Every failure,
// including running out of time, is returned wrapped in ErrUnsolved.
func (c *Client) Solve(ctx context.Context, kind Kind, siteKey, pageURL string) (string, error) {
	if kind == KindNone || siteKey == "" {
		return "", fmt.Errorf("%w: missing challenge kind or site key", ErrUnsolved)
	}
	var created createTaskResponse
	err := c.post(ctx, "/createTask", createTaskRequest{
		ClientKey: c.cfg.APIKey,
		Task:      task{Type: kind, WebsiteURL: pageURL, WebsiteKey: siteKey},
	}, &created)
	if err != nil {
		return "", fmt.Errorf("%w: create task: %v", ErrUnsolved, err)
	}
	if created.ErrorID != 0 {
		return "", fmt.Errorf("%w: create task: %s %s", ErrUnsolved, created.ErrorCode, created.ErrorDescription)
	}
	c.logger.Debug("captcha task created", zap.String("task_id", created.TaskID), zap.String("kind", string(kind)))

	token, err := poll.Until(ctx, poll.Within(c.cfg.Timeout, c.cfg.PollInterval), func(ctx context.Context) (string, bool, error) {
		if created.TaskID == "" {
			return "", false, errors.New("vendor returned empty task id")
		}
		var res taskResultResponse
		if err := c.post(ctx, "/getTaskResult", taskResultRequest{ClientKey: c.cfg.APIKey, TaskID: created.TaskID}, &res); err != nil {
			return "", false, err
		}
		if res.ErrorID != 0 {
			return "", false, fmt.Errorf("task result: %s", res.ErrorDescription)
		}
		if res.Status != "ready" {
			return "", false, nil
		}
		token := res.Solution.GRecaptchaResponse
		if token == "" {
			token = res.Solution.Token
		}
		if token == "" {
			return "", false, errors.New("ready task carried no token")
		}
		return token, true, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsolved, err)
	}
	return token, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("post %s: status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
