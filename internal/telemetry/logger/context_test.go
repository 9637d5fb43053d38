package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestWithLogger_FromContext(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
	}

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	ctx = WithLogger(ctx, l)

	retrieved := FromContext(ctx)
	if retrieved == nil {
		t.Fatal("FromContext returned nil")
	}

	retrieved.Info("test message")

	if buf.Len() == 0 {
		t.Error("Logger from context should produce output")
	}
}

func TestFromContext_Default(t *testing.T) {
	ctx := context.Background()

	// Should return default logger when none is set
	l := FromContext(ctx)
	if l == nil {
		t.Error("FromContext should return default logger, got nil")
	}
}

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()
	requestID := "req-12345"

	ctx = WithRequestID(ctx, requestID)

	retrieved := RequestIDFromContext(ctx)
	if retrieved != requestID {
		t.Errorf("RequestIDFromContext() = %q, want %q", retrieved, requestID)
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	ctx := context.Background()

	retrieved := RequestIDFromContext(ctx)
	if retrieved != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty string", retrieved)
	}
}

func TestL_WithRequestID(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
	}

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	ctx = WithLogger(ctx, l)
	ctx = WithRequestID(ctx, "req-12345")

	// L() should enrich with request ID
	enrichedLogger := L(ctx)
	enrichedLogger.Info("test message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	reqID, ok := logEntry["request_id"].(string)
	if !ok || reqID != "req-12345" {
		t.Errorf("Expected request_id='req-12345', got %v", logEntry["request_id"])
	}
}

func TestL_NoRequestID(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{
		Level:  "info",
		Format: "json",
		Output: &buf,
	}

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	ctx = WithLogger(ctx, l)

	// L() without a request id should just return the logger unchanged.
	enrichedLogger := L(ctx)
	enrichedLogger.Info("test message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	if _, ok := logEntry["request_id"]; ok {
		t.Error("Should not have request_id when not set")
	}
}
