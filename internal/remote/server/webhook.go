package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kilupskalvis/vizedit/internal/models"
)

// SignatureHeader carries the HMAC-SHA256 of the payload when a secret is set.
const SignatureHeader = "X-Vizedit-Signature"

// WebhookEvent is the payload sent to webhook URLs for every recorded event.
type WebhookEvent struct {
	Event     string            `json:"event"`
	Subject   string            `json:"subject"`
	ObjectID  int64             `json:"object_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// WebhookConfig holds the webhook URLs and optional signing secret.
type WebhookConfig struct {
	URLs   []string
	Secret string
}

// WebhookNotifier forwards analytics events to the configured URLs.
// A nil notifier drops events.
type WebhookNotifier struct {
	config     *WebhookConfig
	client     *http.Client
	logger     *slog.Logger
	retryDelay time.Duration

	inflight sync.WaitGroup
}

// webhookAttempts is one delivery plus two retries.
const webhookAttempts = 3

// NewWebhookNotifier returns nil when cfg names no URLs.
func NewWebhookNotifier(cfg *WebhookConfig, logger *slog.Logger) *WebhookNotifier {
	if cfg == nil || len(cfg.URLs) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		config:     cfg,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		retryDelay: time.Second,
	}
}

// NotifyEvent queues ev for every URL and returns immediately.
func (wn *WebhookNotifier) NotifyEvent(ev models.Event) {
	if wn == nil {
		return
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	data, err := json.Marshal(WebhookEvent{
		Event:     ev.Action,
		Subject:   ev.Subject,
		ObjectID:  ev.ObjectID,
		Metadata:  ev.Metadata,
		Timestamp: ts.UTC().Format(time.RFC3339),
	})
	if err != nil {
		wn.logger.Error("webhook: encode event", "error", err)
		return
	}

	for _, url := range wn.config.URLs {
		wn.inflight.Go(func() {
			if err := wn.post(url, data); err != nil {
				wn.logger.Warn("webhook: delivery failed", "url", url, "event", ev.Action, "error", err)
				return
			}
			wn.logger.Debug("webhook: delivered", "url", url, "event", ev.Action)
		})
	}
}

// Wait blocks until every queued delivery has finished or given up.
func (wn *WebhookNotifier) Wait() {
	if wn == nil {
		return
	}
	wn.inflight.Wait()
}

// post delivers one payload. Network errors and 5xx are retried with a
// doubling delay; any other non-2xx status fails at once.
func (wn *WebhookNotifier) post(url string, data []byte) error {
	var err error
	for attempt := 1; attempt <= webhookAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(wn.retryDelay << (attempt - 2))
		}

		var status int
		status, err = wn.send(url, data, attempt)
		switch {
		case err != nil:
			continue
		case status >= 200 && status < 300:
			return nil
		case status >= 500:
			err = fmt.Errorf("HTTP %d", status)
		default:
			return fmt.Errorf("HTTP %d", status)
		}
	}
	return err
}

func (wn *WebhookNotifier) send(url string, data []byte, attempt int) (int, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "vizedit-server/1.0")
	req.Header.Set("X-Vizedit-Attempt", strconv.Itoa(attempt))
	if wn.config.Secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(wn.config.Secret, data))
	}

	resp, err := wn.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
