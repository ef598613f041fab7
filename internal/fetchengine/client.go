package fetchengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/logger"
)

const (
	// defaultTimeout bounds one fetch job from submission to completion.
	defaultTimeout = 2 * time.Hour
	// defaultPollInterval is the delay between job status polls.
	defaultPollInterval = 10 * time.Second
)

// Job status values reported by the engine API.
const (
	statusSucceeded = "SUCCEEDED"
	statusFailed    = "FAILED"
	statusAborted   = "ABORTED"
	statusTimedOut  = "TIMED-OUT"
)

// Client is the HTTP implementation of Engine. It submits a job, polls its
// status, and downloads the result dataset when the job succeeds.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	timeout      time.Duration
	pollInterval time.Duration
	logger       logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds a whole job run.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithPollInterval sets the status poll interval.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = interval
	}
}

// NewClient creates an engine client for the given API endpoint.
func NewClient(baseURL, apiKey string, log logger.Logger, opts ...Option) *Client {
	client := &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		timeout:      defaultTimeout,
		pollInterval: defaultPollInterval,
		logger:       log,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// jobSubmission is the request body for starting a job.
type jobSubmission struct {
	RequestID string `json:"requestId"`
	JobRequest
}

// jobStatus is the engine's job status response.
type jobStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	DatasetID string `json:"datasetId"`
}

// Run submits the job and blocks until it finishes or the job timeout
// expires. Every failure mode maps to a FetchError.
func (c *Client) Run(ctx context.Context, req JobRequest) ([]PageResult, error) {
	if len(req.StartURLs) == 0 {
		return nil, domain.ConfigError("fetch job has no start urls")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	job, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Fetch job submitted",
		logger.String("job_id", job.ID),
		logger.Int("start_urls", len(req.StartURLs)))

	job, err = c.waitForCompletion(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	if job.DatasetID == "" {
		return nil, domain.FetchError(
			errors.New("job completed without a result dataset"), job.ID)
	}

	return c.fetchDataset(ctx, job.DatasetID)
}

// submit starts a job and returns its initial status.
func (c *Client) submit(ctx context.Context, req JobRequest) (*jobStatus, error) {
	body, err := json.Marshal(jobSubmission{
		RequestID:  uuid.NewString(),
		JobRequest: req,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal job request: %w", err)
	}

	endpoint, err := url.JoinPath(c.baseURL, "jobs")
	if err != nil {
		return nil, fmt.Errorf("construct job url: %w", err)
	}

	var job jobStatus
	if err := c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body), &job); err != nil {
		return nil, domain.FetchError(err, "submit fetch job")
	}
	return &job, nil
}

// waitForCompletion polls the job until it reaches a terminal status.
func (c *Client) waitForCompletion(ctx context.Context, jobID string) (*jobStatus, error) {
	endpoint, err := url.JoinPath(c.baseURL, "jobs", jobID)
	if err != nil {
		return nil, fmt.Errorf("construct status url: %w", err)
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var job jobStatus
		if err := c.do(ctx, http.MethodGet, endpoint, http.NoBody, &job); err != nil {
			return nil, domain.FetchError(err, "poll fetch job "+jobID)
		}

		switch job.Status {
		case statusSucceeded:
			return &job, nil
		case statusFailed, statusAborted, statusTimedOut:
			return nil, domain.FetchError(
				fmt.Errorf("job finished with status %s", job.Status), jobID)
		}

		select {
		case <-ctx.Done():
			return nil, domain.FetchError(ctx.Err(), "wait for fetch job "+jobID)
		case <-ticker.C:
		}
	}
}

// fetchDataset downloads the result records of a completed job.
func (c *Client) fetchDataset(ctx context.Context, datasetID string) ([]PageResult, error) {
	endpoint, err := url.JoinPath(c.baseURL, "datasets", datasetID, "items")
	if err != nil {
		return nil, fmt.Errorf("construct dataset url: %w", err)
	}

	var results []PageResult
	if err := c.do(ctx, http.MethodGet, endpoint, http.NoBody, &results); err != nil {
		return nil, domain.FetchError(err, "fetch dataset "+datasetID)
	}
	return results, nil
}

// do executes one API request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s %s: unexpected status %d", method, endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
