package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "connection reset" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

func TestWithRetryStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	authErr := &apiStatusError{status: http.StatusUnauthorized, message: "bad key"}

	_, err := withRetry(context.Background(), testLogger, "analyze_match", 3,
		retryableOpenRouterError, func() (string, error) {
			calls++
			return "", authErr
		})

	if err == nil {
		t.Fatal("expected error for auth failure")
	}
	if calls != 1 {
		t.Errorf("auth failure called fn %d times, want 1", calls)
	}
	if !errors.Is(err, authErr) {
		t.Errorf("wrapped error should preserve the cause, got %v", err)
	}
}

func TestWithRetryRecoversFromTransientError(t *testing.T) {
	calls := 0

	result, err := withRetry(context.Background(), testLogger, "analyze_match", 2,
		retryableOpenRouterError, func() (string, error) {
			calls++
			if calls == 1 {
				return "", &apiStatusError{status: http.StatusServiceUnavailable, message: "overloaded"}
			}
			return "recovered", nil
		})

	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if result != "recovered" {
		t.Errorf("result = %q, want %q", result, "recovered")
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	calls := 0
	transient := &apiStatusError{status: http.StatusBadGateway, message: "upstream down"}

	_, err := withRetry(context.Background(), testLogger, "analyze_match", 0,
		retryableOpenRouterError, func() (string, error) {
			calls++
			return "", transient
		})

	if err == nil {
		t.Fatal("expected error after budget exhaustion")
	}
	if calls != 1 {
		t.Errorf("fn called %d times with zero retries, want 1", calls)
	}
	if !strings.Contains(err.Error(), "failed after 1 attempts") {
		t.Errorf("error should report attempt count, got %v", err)
	}
}

func TestWithRetryHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := withRetry(ctx, testLogger, "analyze_match", 5,
		retryableOpenRouterError, func() (string, error) {
			calls++
			return "", &apiStatusError{status: http.StatusTooManyRequests, message: "slow down"}
		})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times before cancellation, want 1", calls)
	}
}

func TestRetryableGeminiError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network timeout", &fakeNetError{timeout: true}, true},
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"server error", &googleapi.Error{Code: http.StatusInternalServerError}, true},
		{"bad gateway", &googleapi.Error{Code: http.StatusBadGateway}, true},
		{"unavailable", &googleapi.Error{Code: http.StatusServiceUnavailable}, true},
		{"gateway timeout", &googleapi.Error{Code: http.StatusGatewayTimeout}, true},
		{"unauthorized", &googleapi.Error{Code: http.StatusUnauthorized}, false},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, false},
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, false},
		{"wrapped network error", fmt.Errorf("calling model: %w", &fakeNetError{}), true},
		{"plain error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableGeminiError(tt.err); got != tt.want {
				t.Errorf("retryableGeminiError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryableOpenRouterError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network error", &fakeNetError{}, true},
		{"rate limited", &apiStatusError{status: http.StatusTooManyRequests}, true},
		{"server error", &apiStatusError{status: http.StatusInternalServerError}, true},
		{"unavailable", &apiStatusError{status: http.StatusServiceUnavailable}, true},
		{"unauthorized", &apiStatusError{status: http.StatusUnauthorized}, false},
		{"not found", &apiStatusError{status: http.StatusNotFound}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableOpenRouterError(tt.err); got != tt.want {
				t.Errorf("retryableOpenRouterError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	for attempt := 1; attempt <= 4; attempt++ {
		base := time.Duration(1<<(attempt-1)) * time.Second
		delay := backoffDelay(attempt)
		if delay < base {
			t.Errorf("attempt %d: delay %v below base %v", attempt, delay, base)
		}
		if max := base + base/10; delay > max {
			t.Errorf("attempt %d: delay %v above base plus jitter %v", attempt, delay, max)
		}
	}

	if delay := backoffDelay(10); delay != 30*time.Second {
		t.Errorf("large attempt delay = %v, want ceiling of 30s", delay)
	}
}

var _ net.Error = (*fakeNetError)(nil)
