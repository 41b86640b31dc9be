package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"rate limit", errors.New("Error 429: RESOURCE_EXHAUSTED"), ErrorTypeRateLimit},
		{"quota", errors.New("quota exceeded for project"), ErrorTypeRateLimit},
		{"auth", errors.New("Error 403: PERMISSION_DENIED"), ErrorTypeAuth},
		{"bad key", errors.New("API key not valid"), ErrorTypeAuth},
		{"server", errors.New("Error 503: service UNAVAILABLE"), ErrorTypeTransient},
		{"conn refused", errors.New("dial tcp: connection refused"), ErrorTypeTransient},
		{"bad request", errors.New("Error 400: INVALID_ARGUMENT"), ErrorTypeBadPrompt},
		{"model missing", errors.New("model 'x' not found"), ErrorTypeBadPrompt},
		{"deadline", context.DeadlineExceeded, ErrorTypeTransient},
		{"other", errors.New("something odd"), ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, "gemini")
			if TypeOf(got) != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, TypeOf(got), tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error should wrap the cause")
			}
		})
	}
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	orig := NewError(ErrorTypeAuth, "no key")
	wrapped := fmt.Errorf("call: %w", orig)
	if got := Classify(wrapped, "x"); got != wrapped {
		t.Errorf("already classified error should pass through, got %v", got)
	}
	if Classify(nil, "x") != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]ErrorType{
		429: ErrorTypeRateLimit,
		401: ErrorTypeAuth,
		403: ErrorTypeAuth,
		400: ErrorTypeBadPrompt,
		500: ErrorTypeTransient,
		503: ErrorTypeTransient,
		302: ErrorTypeUnknown,
	}
	for status, want := range cases {
		if got := ClassifyStatus(status); got != want {
			t.Errorf("ClassifyStatus(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []ErrorType{ErrorTypeRateLimit, ErrorTypeTransient, ErrorTypeEmptyResponse, ErrorTypeUnknown}
	for _, et := range retryable {
		if !NewError(et, "x").IsRetryable() {
			t.Errorf("%s should be retryable", et)
		}
	}
	fatal := []ErrorType{ErrorTypeAuth, ErrorTypeBadPrompt, ErrorTypeServiceUnavailable}
	for _, et := range fatal {
		if NewError(et, "x").IsRetryable() {
			t.Errorf("%s should not be retryable", et)
		}
	}
}

func TestServiceUnavailableWrapsCause(t *testing.T) {
	cause := NewError(ErrorTypeTransient, "503")
	err := NewServiceUnavailableError(cause, 3)
	if !Is(err, ErrorTypeServiceUnavailable) {
		t.Error("expected service unavailable type")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be preserved")
	}
	if !strings.Contains(err.Error(), "3 attempts") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestSanitizePrompt(t *testing.T) {
	if got := SanitizePrompt("short", 50); got != "short" {
		t.Errorf("short prompt changed: %q", got)
	}
	long := strings.Repeat("x", 1000)
	got := SanitizePrompt(long, 200)
	if !strings.Contains(got, "[1000 chars, hash:") {
		t.Errorf("missing summary marker: %q", got)
	}
	if len(got) >= len(long) {
		t.Error("sanitized prompt should be shorter")
	}
}
