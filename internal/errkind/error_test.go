package errkind

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without message",
			err:      New(NOT_FOUND, "store.Get", ""),
			expected: "store.Get: NOT_FOUND",
		},
		{
			name:     "with message",
			err:      New(INVALID, "store.Set", "key too long"),
			expected: "store.Set: INVALID: key too long",
		},
		{
			name:     "with cause",
			err:      Wrap(NETWORK, "rpc.Client.Call", "dial failed", errors.New("connection refused")),
			expected: "rpc.Client.Call: NETWORK: dial failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err1 := New(FULL, "store.Set", "capacity exhausted")
	err2 := New(FULL, "peerpool.Add", "pool full")
	err3 := New(EXISTS, "store.Set", "duplicate key")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same Kind")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different Kind")
	}
	if errors.Is(err1, fmt.Errorf("plain error")) {
		t.Error("errors.Is should return false for a non-*Error")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := Wrap(NETWORK, "rpc.dial", "wrapper", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap() should return the cause")
	}
}

func TestIs(t *testing.T) {
	err := New(TIMEOUT, "raftkv.WaitCommitted", "commit wait expired")

	if !Is(err, TIMEOUT) {
		t.Error("Is(err, TIMEOUT) should be true")
	}
	if Is(err, NETWORK) {
		t.Error("Is(err, NETWORK) should be false")
	}
	if Is(fmt.Errorf("plain"), TIMEOUT) {
		t.Error("Is() on a non-*Error should be false")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(nil); got != OK {
		t.Errorf("KindOf(nil) = %v, want OK", got)
	}
	if got := KindOf(New(NOMEM, "store.Set", "")); got != NOMEM {
		t.Errorf("KindOf(NOMEM error) = %v, want NOMEM", got)
	}
	if got := KindOf(fmt.Errorf("opaque")); got != INVALID {
		t.Errorf("KindOf(opaque error) = %v, want INVALID", got)
	}
}

func TestKind_String(t *testing.T) {
	if OK.String() != "OK" {
		t.Errorf("OK.String() = %q, want OK", OK.String())
	}
	if NOT_LEADER.String() != "NOT_LEADER" {
		t.Errorf("NOT_LEADER.String() = %q, want NOT_LEADER", NOT_LEADER.String())
	}
	if Kind(99).String() != "UNKNOWN" {
		t.Errorf("Kind(99).String() = %q, want UNKNOWN", Kind(99).String())
	}
}
