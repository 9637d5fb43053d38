package rpc

import "fmt"

// Handler processes a single request payload and returns a response
// payload plus status. Handlers run one at a time per connection;
// distinct connections invoke handlers concurrently (§4.2).
type Handler func(payload []byte) ([]byte, Status)

type registryKey struct {
	channel Channel
	funcID  uint32
}

// Registry maps (channel, func_id) to a Handler. Not safe for concurrent
// writes; handlers are registered once during node startup before the
// transport begins accepting connections.
type Registry struct {
	handlers map[registryKey]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[registryKey]Handler)}
}

// Register binds a handler to (channel, funcID). Registering the same
// key twice panics: it indicates a wiring bug in node startup, not a
// runtime condition a caller can recover from.
func (r *Registry) Register(channel Channel, funcID uint32, h Handler) {
	key := registryKey{channel, funcID}
	if _, exists := r.handlers[key]; exists {
		panic(fmt.Sprintf("rpc: handler already registered for channel=%s func_id=%d", channel, funcID))
	}
	r.handlers[key] = h
}

// Lookup returns the handler bound to (channel, funcID), if any.
func (r *Registry) Lookup(channel Channel, funcID uint32) (Handler, bool) {
	h, ok := r.handlers[registryKey{channel, funcID}]
	return h, ok
}

// Dispatch looks up and invokes the handler for req, returning
// StatusInternalError with a nil payload if no handler is registered.
func (r *Registry) Dispatch(req Request) ([]byte, Status) {
	h, ok := r.Lookup(req.Channel, req.FuncID)
	if !ok {
		return nil, StatusInternalError
	}
	return h(req.Payload)
}
