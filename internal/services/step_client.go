package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/loomworks/workflow-engine/pkg/models"
)

// HTTPStepInvoker is an HTTP implementation of the StepInvoker interface.
// Each attempt is one request with a hard per-attempt timeout; failures are
// retried with exponential backoff up to the step's retry count.
type HTTPStepInvoker struct {
	tracker     *ExecutionTracker
	allowList   *AllowList
	client      *http.Client
	logger      *slog.Logger
	backoffBase time.Duration
	backoffCap  time.Duration
}

// NewHTTPStepInvoker creates a new HTTPStepInvoker. The backoff cap bounds
// the otherwise unbounded exponential delay between attempts.
func NewHTTPStepInvoker(tracker *ExecutionTracker, allowList *AllowList, backoffCap time.Duration, logger *slog.Logger) *HTTPStepInvoker {
	return &HTTPStepInvoker{
		tracker:     tracker,
		allowList:   allowList,
		client:      &http.Client{},
		logger:      logger,
		backoffBase: time.Second,
		backoffCap:  backoffCap,
	}
}

// Invoke executes one step. The total number of attempts equals the step's
// retry count, never less than one. The returned error is non-nil only for
// storage failures; remote failures are reported through the success flag.
func (inv *HTTPStepInvoker) Invoke(ctx context.Context, executionID string, step models.Step) (bool, error) {
	if err := inv.tracker.RecordStepStart(ctx, executionID, step.StepID); err != nil {
		return false, err
	}

	if err := inv.allowList.Check(step.ServiceURL); err != nil {
		inv.logger.Warn("step target rejected", "step", step.StepID, "error", err)
		if rerr := inv.tracker.RecordStepOutcome(ctx, executionID, step.StepID, false, nil, err.Error()); rerr != nil {
			return false, rerr
		}
		return false, nil
	}

	// rows written without passing through ApplyDefaults may carry a
	// non-positive retry count; every step still gets one attempt
	attempts := step.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := inv.waitBackoff(ctx, attempt-1); err != nil {
				lastErr = err
				break
			}
		}

		body, err := inv.attempt(ctx, step)
		if err == nil {
			if rerr := inv.tracker.RecordStepOutcome(ctx, executionID, step.StepID, true, body, ""); rerr != nil {
				return false, rerr
			}
			return true, nil
		}
		lastErr = err
		inv.logger.Debug("step attempt failed",
			"step", step.StepID, "attempt", attempt+1, "of", attempts, "error", err)
	}

	if rerr := inv.tracker.RecordStepOutcome(ctx, executionID, step.StepID, false, nil, lastErr.Error()); rerr != nil {
		return false, rerr
	}
	return false, nil
}

// attempt makes one request against the step's target. Any status below 400
// counts as success and the response body becomes the step result.
func (inv *HTTPStepInvoker) attempt(ctx context.Context, step models.Step) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(step.Timeout)*time.Second)
	defer cancel()

	var reqBody io.Reader
	if step.Method != http.MethodGet && step.Payload != nil {
		data, err := json.Marshal(step.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, step.Method, step.ServiceURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := inv.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", step.ServiceURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	// the result column is JSONB, so a body it cannot hold is a failed attempt
	if !json.Valid(data) {
		return nil, fmt.Errorf("response body is not valid JSON")
	}
	return data, nil
}

// waitBackoff suspends for 2^exp seconds, capped, without blocking past
// context cancellation.
func (inv *HTTPStepInvoker) waitBackoff(ctx context.Context, exp int) error {
	delay := time.Duration(float64(inv.backoffBase) * math.Pow(2, float64(exp)))
	if delay > inv.backoffCap || delay <= 0 {
		delay = inv.backoffCap
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
