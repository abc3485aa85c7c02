package services_test

import (
	"errors"
	"strings"
	"testing"

	"unspool/internal/queue"
	"unspool/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "unlock", "decrypt", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"unlock", "decrypt", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "ingest", "move", "no marker", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected default transient marker, got %v", err)
	}
}

func TestMessageStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "unlocker", "decrypt payload", "Container scheme is not supported", nil)
	got := services.Message(err)
	want := "unlocker: decrypt payload: Container scheme is not supported"
	if got != want {
		t.Fatalf("Message = %q, want %q", got, want)
	}
	if services.Message(nil) != "" {
		t.Fatal("expected empty message for nil error")
	}
	if got := services.Message(errors.New("plain failure")); got != "plain failure" {
		t.Fatalf("Message = %q, want %q", got, "plain failure")
	}
}

func TestFailureStatusMapping(t *testing.T) {
	validationErr := services.Wrap(services.ErrValidation, "identify", "prepare", "invalid", nil)
	if status := services.FailureStatus(validationErr); status != queue.StatusReview {
		t.Fatalf("expected review for validation error, got %s", status)
	}

	transientErr := services.Wrap(services.ErrTransient, "unlock", "write", "write failed", errors.New("io"))
	if status := services.FailureStatus(transientErr); status != queue.StatusFailed {
		t.Fatalf("expected failed for transient error, got %s", status)
	}

	if status := services.FailureStatus(nil); status != queue.StatusFailed {
		t.Fatalf("expected failed for nil error, got %s", status)
	}
}
