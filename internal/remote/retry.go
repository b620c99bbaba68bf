package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/kilupskalvis/vizedit/internal/models"
)

// RetryConfig configures retry behavior for transient errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0

	// Logger receives a debug line per retry. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryClient wraps a RemoteClient with automatic retry on transient errors.
// Reads and result uploads are retried; other writes pass straight through.
type RetryClient struct {
	inner  RemoteClient
	config *RetryConfig
}

// NewRetryClient creates a RetryClient that wraps the given RemoteClient.
func NewRetryClient(inner RemoteClient, cfg *RetryConfig) *RetryClient {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &RetryClient{inner: inner, config: cfg}
}

// isTransient returns true for errors that are worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status >= 500 || re.Status == http.StatusTooManyRequests
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true // network errors are transient
}

// backoff computes the delay for the given attempt with jitter.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	base := float64(rc.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(rc.config.MaxBackoff) {
		base = float64(rc.config.MaxBackoff)
	}
	jitter := base * rc.config.JitterFraction * (rand.Float64()*2 - 1) // +/- jitter
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// delay is the wait before the next attempt. A server-sent Retry-After wins
// over the computed backoff when it is longer, up to MaxBackoff.
func (rc *RetryClient) delay(attempt int, err error) time.Duration {
	d := rc.backoff(attempt)
	var re *RemoteError
	if errors.As(err, &re) && re.RetryAfter > d {
		d = min(re.RetryAfter, rc.config.MaxBackoff)
	}
	return d
}

func (rc *RetryClient) logger() *slog.Logger {
	if rc.config.Logger != nil {
		return rc.config.Logger
	}
	return slog.Default()
}

// retry runs fn until it succeeds, fails permanently or runs out of attempts.
func (rc *RetryClient) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= rc.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt == rc.config.MaxRetries {
			break
		}
		d := rc.delay(attempt, lastErr)
		rc.logger().Debug("retrying remote call", "operation", operation, "attempt", attempt+1, "delay", d, "error", lastErr)
		if err := sleep(ctx, d); err != nil {
			return fmt.Errorf("%s: %w (retry cancelled)", operation, lastErr)
		}
	}
	return fmt.Errorf("%s: %w (after %d retries)", operation, lastErr, rc.config.MaxRetries)
}

// --- Reads are retried, writes are not ---

func (rc *RetryClient) ListQueries(ctx context.Context) (queries []*models.Query, err error) {
	err = rc.retry(ctx, "list queries", func() error {
		queries, err = rc.inner.ListQueries(ctx)
		return err
	})
	return
}

func (rc *RetryClient) GetQuery(ctx context.Context, id int64) (q *models.Query, err error) {
	err = rc.retry(ctx, "get query", func() error {
		q, err = rc.inner.GetQuery(ctx, id)
		return err
	})
	return
}

func (rc *RetryClient) CreateQuery(ctx context.Context, q *models.Query) (*models.Query, error) {
	return rc.inner.CreateQuery(ctx, q)
}

func (rc *RetryClient) DeleteQuery(ctx context.Context, id int64) error {
	return rc.inner.DeleteQuery(ctx, id)
}

func (rc *RetryClient) GetResult(ctx context.Context, queryID int64) (data *models.QueryResultData, err error) {
	err = rc.retry(ctx, "get result", func() error {
		data, err = rc.inner.GetResult(ctx, queryID)
		return err
	})
	return
}

func (rc *RetryClient) SaveResult(ctx context.Context, queryID int64, data *models.QueryResultData) error {
	// Uploads replace the snapshot wholesale.
	return rc.retry(ctx, "save result", func() error {
		return rc.inner.SaveResult(ctx, queryID, data)
	})
}

func (rc *RetryClient) GetVisualization(ctx context.Context, id int64) (v *models.Visualization, err error) {
	err = rc.retry(ctx, "get visualization", func() error {
		v, err = rc.inner.GetVisualization(ctx, id)
		return err
	})
	return
}

func (rc *RetryClient) SaveVisualization(ctx context.Context, v *models.Visualization) (*models.Visualization, error) {
	// Creates are not idempotent.
	return rc.inner.SaveVisualization(ctx, v)
}

func (rc *RetryClient) DeleteVisualization(ctx context.Context, id int64) error {
	return rc.inner.DeleteVisualization(ctx, id)
}

func (rc *RetryClient) Record(ctx context.Context, ev models.Event) error {
	return rc.inner.Record(ctx, ev)
}

func (rc *RetryClient) ListEvents(ctx context.Context, limit int) (events []*models.Event, err error) {
	err = rc.retry(ctx, "list events", func() error {
		events, err = rc.inner.ListEvents(ctx, limit)
		return err
	})
	return
}

func (rc *RetryClient) GetInfo(ctx context.Context) (info *ServerInfo, err error) {
	err = rc.retry(ctx, "get server info", func() error {
		info, err = rc.inner.GetInfo(ctx)
		return err
	})
	return
}

var (
	_ RemoteClient = (*HTTPClient)(nil)
	_ RemoteClient = (*RetryClient)(nil)
)
