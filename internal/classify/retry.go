package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

const defaultMaxRetries = 3

// retryPolicy re-runs classifier calls that fail transiently. The backend is
// a shared model server that queues requests, so 429/5xx and dropped
// connections usually clear on their own; schema violations and client
// errors never do and are not retried. Backoff grows quadratically with a
// random jitter so concurrent sessions do not resynchronize on it.
type retryPolicy struct {
	maxRetries int
	unit       time.Duration
	logger     *slog.Logger
}

func newRetryPolicy(maxRetries int, logger *slog.Logger) retryPolicy {
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	return retryPolicy{maxRetries: maxRetries, unit: time.Second, logger: logger}
}

// transientStatus reports whether an HTTP status is worth another try.
func transientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	base := time.Duration(attempt*attempt) * p.unit
	return base + time.Duration(rand.Int64N(int64(base/2+1)))
}

// pause blocks before retry number attempt, honoring cancellation.
func (p retryPolicy) pause(ctx context.Context, attempt int) error {
	wait := p.backoff(attempt)
	p.logger.Warn("retrying classifier call", "attempt", attempt+1, "backoff", wait)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// do sends an HTTP request under the policy, retrying network failures and
// transient statuses. Non-transient statuses are returned to the caller as a
// response; the caller owns the body.
func (p retryPolicy) do(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if err := p.pause(ctx, attempt); err != nil {
				return nil, err
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			p.logger.Warn("classifier request failed", "err", err)
			continue
		}

		if transientStatus(resp.StatusCode) {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
			p.logger.Warn("classifier backend unavailable", "status", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", p.maxRetries+1, lastErr)
}

// run retries an arbitrary call; transient decides whether a failure is
// worth another attempt. Context errors never are.
func (p retryPolicy) run(ctx context.Context, call func() error, transient func(error) bool) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if err := p.pause(ctx, attempt); err != nil {
				return err
			}
		}

		err := call()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || !transient(err) {
			return err
		}
		lastErr = err
		p.logger.Warn("classifier call failed", "err", err)
	}
	return fmt.Errorf("giving up after %d attempts: %w", p.maxRetries+1, lastErr)
}
