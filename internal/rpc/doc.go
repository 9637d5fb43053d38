// Package rpc implements the framed RPC dispatch fabric (§4.1/§4.2): a
// fixed binary wire format, a TCP transport with one accept loop and one
// goroutine per connection, a handler registry keyed by (channel, func
// id), and a blocking client. Two independent channels run over it, DATA
// and INGRESS, each bound to its own listener.
package rpc
