package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/applicantpool/internal/domain/model"
	"github.com/okian/applicantpool/pkg/logger"
)

// refKey is the row member the API reads as the row reference.
const refKey = "_ref"

// batchRequest mirrors the body of POST /batches.
type batchRequest struct {
	BatchID    string              `json:"batch_id"`
	SourceFile string              `json:"source_file,omitempty"`
	Rows       []map[string]string `json:"rows"`
}

func newBatchRequest(id, sourceFile string, rows []model.Row) batchRequest {
	req := batchRequest{BatchID: id, SourceFile: sourceFile, Rows: make([]map[string]string, len(rows))}
	for i, r := range rows {
		m := make(map[string]string, len(r.Fields)+1)
		for k, v := range r.Fields {
			m[k] = v
		}
		if r.Ref != "" {
			m[refKey] = r.Ref
		}
		req.Rows[i] = m
	}
	return req
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client talks to the applicant pool HTTP API.
type Client struct {
	client  *http.Client
	baseURL string
	retries int
	backoff time.Duration
}

// newClient creates a new API client from the run configuration.
func newClient(config *Config) *Client {
	return &Client{
		client:  &http.Client{Timeout: config.Timeout},
		baseURL: config.BaseURL,
		retries: config.Retries,
		backoff: config.Backoff,
	}
}

// Health checks that the service answers on /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer closeBody(resp)

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// Submit posts one batch and returns its merge result. Backpressure (429)
// and unavailability (503) are retried with exponential backoff.
func (c *Client) Submit(ctx context.Context, body batchRequest) (model.BatchResult, error) { //nolint:gocritic // hugeParam: request is marshaled once
	payload, err := json.Marshal(body)
	if err != nil {
		return model.BatchResult{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	wait := c.backoff
	for attempt := 0; ; attempt++ {
		res, status, err := c.post(ctx, payload)
		if err == nil {
			return res, nil
		}
		retryable := status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
		if !retryable {
			return model.BatchResult{}, err
		}
		if attempt >= c.retries {
			return model.BatchResult{}, fmt.Errorf("%w: %w", ErrRetryLimit, err)
		}

		logger.Get().Warn(ctx, "batch deferred by service, retrying",
			logger.String("batch_id", body.BatchID),
			logger.Int("status", status),
			logger.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return model.BatchResult{}, ctx.Err()
		case <-timer.C:
		}
		wait *= 2
	}
}

func (c *Client) post(ctx context.Context, payload []byte) (model.BatchResult, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/batches", bytes.NewReader(payload))
	if err != nil {
		return model.BatchResult{}, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.BatchResult{}, 0, fmt.Errorf("failed to post batch: %w", err)
	}
	defer closeBody(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.BatchResult{}, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.Unmarshal(data, &e)
		return model.BatchResult{}, resp.StatusCode,
			fmt.Errorf("%w: status %d %s: %s", ErrRejected, resp.StatusCode, e.Code, e.Message)
	}

	var res model.BatchResult
	if err := json.Unmarshal(data, &res); err != nil {
		return model.BatchResult{}, resp.StatusCode, fmt.Errorf("failed to decode result: %w", err)
	}
	return res, resp.StatusCode, nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
	}
}
