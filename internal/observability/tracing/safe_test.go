package tracing

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsCredentials(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/login"),
		attribute.String("user.email", "a@example.com"),
		attribute.String("form.password", "secret"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("expected only http.route, got %v", attrs)
	}
}

func TestSafeError(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatal("expected nil")
	}
	plain := errors.New("connection refused")
	if SafeError(plain) != plain {
		t.Fatal("expected plain error to pass through")
	}
	if got := SafeError(errors.New("bad password for a@example.com")); got.Error() != "redacted error" {
		t.Fatalf("expected redacted error, got %v", got)
	}
}
