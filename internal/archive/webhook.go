package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

const webhookSecretHeader = "X-Arena-Secret"

// WebhookRecorder POSTs every finished match as JSON to an external endpoint.
type WebhookRecorder struct {
	url    string
	secret string
	http   *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type WebhookOption func(*WebhookRecorder)

func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *WebhookRecorder) { w.defaultTimeout = d }
}

func WithWebhookRetry(max int) WebhookOption {
	return func(w *WebhookRecorder) { w.retryMax = max }
}

func WithWebhookSecret(secret string) WebhookOption {
	return func(w *WebhookRecorder) { w.secret = strings.TrimSpace(secret) }
}

// WithWebhookClient swaps the fasthttp client, mostly for in-memory listeners in tests.
func WithWebhookClient(c *fasthttp.Client) WebhookOption {
	return func(w *WebhookRecorder) { w.http = c }
}

func NewWebhookRecorder(url string, opts ...WebhookOption) *WebhookRecorder {
	w := &WebhookRecorder{
		url:            strings.TrimSpace(url),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebhookRecorder) Record(ctx context.Context, res arenadto.MatchResult) error {
	payload, err := json.Marshal(withPGN(res))
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	if w.secret != "" {
		req.Header.Set(webhookSecretHeader, w.secret)
	}
	req.SetBody(payload)

	attempts := w.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.http.DoDeadline(req, resp, w.deadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return nil
			}
			err = fmt.Errorf("webhook status=%d body=%s", status, truncate(string(resp.Body()), 256))
			if !shouldRetryStatus(status) {
				return err
			}
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("webhook: unknown error")
	}
	return fmt.Errorf("webhook: %w", lastErr)
}

func (w *WebhookRecorder) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(w.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
