package idgen

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestIDPrefix marks correlation IDs in log lines and error messages.
const RequestIDPrefix = "req-"

// Generator produces correlation IDs. The zero value is not usable; use
// NewGenerator. A Generator is safe for concurrent use: ulid.Monotonic's
// entropy source is not itself concurrency-safe, so callers serialize
// through a mutex.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator creates a correlation ID generator.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// New returns a new request-correlation ID, formatted req-{ulid_lowercase}.
func (g *Generator) New() string {
	g.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	g.mu.Unlock()
	if err != nil {
		// Entropy exhaustion under ulid.Monotonic only occurs after more
		// than 2^80 IDs within the same millisecond; fall back to a fresh
		// non-monotonic ID rather than surfacing an error to callers that
		// only want a correlation token.
		id, _ = ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	}
	return RequestIDPrefix + strings.ToLower(id.String())
}

// defaultGenerator is the package-level generator used by New.
var defaultGenerator = NewGenerator()

// New returns a new request-correlation ID using the package-level
// generator. Prefer this for call sites that do not need their own
// Generator instance.
func New() string {
	return defaultGenerator.New()
}

// Valid reports whether id looks like a correlation ID produced by this
// package: the req- prefix followed by a parseable ULID. It is not a
// cryptographic verification.
func Valid(id string) bool {
	if !strings.HasPrefix(id, RequestIDPrefix) {
		return false
	}
	_, err := ulid.Parse(strings.ToUpper(id[len(RequestIDPrefix):]))
	return err == nil
}
