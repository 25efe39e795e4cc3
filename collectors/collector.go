// Package collectors bündelt die gemeinsame HTTP-Infrastruktur der
// Quell-Clients: geteilter Client mit User-Agent, Retry mit exponentiellem
// Backoff und tolerantes Datums-Parsing.
package collectors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const userAgent = "PharmaCI-Tool/1.0"

type headerTransport struct {
	base http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return t.base.RoundTrip(req)
}

// HTTPClient wird von allen Collectors geteilt.
var HTTPClient = &http.Client{
	Timeout:   60 * time.Second,
	Transport: &headerTransport{base: http.DefaultTransport},
}

// RetryPolicy begrenzt Wiederholungen fehlgeschlagener Aufrufe.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

// DefaultRetryPolicy liefert die Standard-Policy (Backoff ab 2s, verdoppelnd).
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return RetryPolicy{MaxAttempts: maxAttempts, InitialDelay: 2 * time.Second}
}

// Retry führt fn aus und wiederholt bei Fehlern mit exponentiellem Backoff,
// bis die Policy erschöpft ist oder der Kontext abläuft.
func Retry(ctx context.Context, log *zap.Logger, policy RetryPolicy, op string, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := policy.InitialDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		log.Warn("Aufruf fehlgeschlagen, wiederhole",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
	return fmt.Errorf("%s: aufgegeben nach %d Versuchen: %w", op, attempts, lastErr)
}

// Get führt einen GET mit Rate-Limit und Retry aus und liefert den Body.
func Get(ctx context.Context, log *zap.Logger, limiter *rate.Limiter, policy RetryPolicy, rawURL string) ([]byte, error) {
	var body []byte
	err := Retry(ctx, log, policy, "GET "+rawURL, func() error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		resp, err := HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("unerwarteter Status %d", resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	return body, err
}

// ParseDate parst ein Upstream-Datum tolerant. Nicht parsbare oder leere
// Eingaben liefern nil statt Fehler, damit ein kaputtes Datum nie einen
// ganzen Record verwirft.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
