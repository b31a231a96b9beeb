// Package genai provides the HTTP client for the remote AI generation backend.
// It implements both the jobqueue and balance ports.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glintapp/glint-core/internal/domain"
	"github.com/glintapp/glint-core/internal/domain/generation"
	"github.com/glintapp/glint-core/internal/port/balance"
	"github.com/glintapp/glint-core/internal/port/jobqueue"
	"github.com/glintapp/glint-core/internal/resilience"
)

// Client talks to the generation backend's job API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a new generation backend client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type submitRequest struct {
	Kind    generation.JobKind  `json:"kind"`
	OwnerID string              `json:"owner_id"`
	Price   int64               `json:"price"`
	Params  generation.Metadata `json:"params"`
}

// Submit enqueues a poll-model job.
func (c *Client) Submit(ctx context.Context, sub jobqueue.Submission) (*jobqueue.SubmitResult, error) {
	body, err := json.Marshal(submitRequest{Kind: sub.Kind, OwnerID: sub.OwnerID, Price: sub.Price, Params: sub.Meta})
	if err != nil {
		return nil, fmt.Errorf("marshal submit: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/jobs", body)
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}

	var result struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal submit response: %w", err)
	}
	if result.JobID == "" {
		return nil, fmt.Errorf("submit job: backend returned no job id")
	}
	return &jobqueue.SubmitResult{JobID: result.JobID}, nil
}

// QueryStatus fetches the current status of a submitted job.
func (c *Client) QueryStatus(ctx context.Context, jobID string, kind generation.JobKind) (*jobqueue.StatusResult, error) {
	path := fmt.Sprintf("/v1/jobs/%s?kind=%s", jobID, kind)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("query job %s: %w", jobID, err)
	}

	var result struct {
		Status    string   `json:"status"`
		VideoURL  string   `json:"video_url"`
		ImageURL  string   `json:"image_url"`
		ImageURLs []string `json:"image_urls"`
		Message   string   `json:"message"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal status response: %w", err)
	}

	return &jobqueue.StatusResult{
		Status:    mapRemoteStatus(result.Status),
		VideoURL:  result.VideoURL,
		ImageURL:  result.ImageURL,
		ImageURLs: result.ImageURLs,
		Message:   result.Message,
	}, nil
}

// ExecuteOnce performs a single-shot generation (background model): the call
// blocks until the backend reports the final result or failure.
func (c *Client) ExecuteOnce(ctx context.Context, sub jobqueue.Submission) (*jobqueue.ExecuteResult, error) {
	body, err := json.Marshal(submitRequest{Kind: sub.Kind, OwnerID: sub.OwnerID, Price: sub.Price, Params: sub.Meta})
	if err != nil {
		return nil, fmt.Errorf("marshal execute: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/generate", body)
	if err != nil {
		return nil, fmt.Errorf("execute job: %w", err)
	}

	var result struct {
		ResultURL string `json:"result_url"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal execute response: %w", err)
	}
	return &jobqueue.ExecuteResult{ResultRef: result.ResultURL}, nil
}

// Check queries the owner's credit balance against the requested amount.
func (c *Client) Check(ctx context.Context, ownerID string, amount int64) (*balance.Check, error) {
	path := fmt.Sprintf("/v1/balance/%s?amount=%d", ownerID, amount)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("check balance: %w", err)
	}

	var result balance.Check
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal balance response: %w", err)
	}
	return &result, nil
}

// mapRemoteStatus normalizes backend status strings onto the port vocabulary.
func mapRemoteStatus(s string) jobqueue.RemoteStatus {
	switch s {
	case "pending", "queued", "processing", "running":
		return jobqueue.RemotePending
	case "succeeded", "completed", "success":
		return jobqueue.RemoteSucceeded
	case "failed", "error":
		return jobqueue.RemoteFailed
	case "canceled", "cancelled":
		return jobqueue.RemoteCanceled
	default:
		return jobqueue.RemoteUnknown
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusPaymentRequired {
			return insufficientBalanceFrom(data)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("backend API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

// insufficientBalanceFrom decodes a 402 response into the typed error the
// engine distinguishes from generic failures.
func insufficientBalanceFrom(data []byte) error {
	var payload struct {
		Required  int64 `json:"required"`
		Available int64 `json:"available"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return &domain.InsufficientBalanceError{}
	}
	return &domain.InsufficientBalanceError{Required: payload.Required, Available: payload.Available}
}
