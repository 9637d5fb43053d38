// Package idgen generates request-correlation identifiers for the RPC
// dispatch fabric. IDs are ULIDs: lexicographically sortable by creation
// time, which keeps log lines for a single request grouping naturally
// when tailed in order.
package idgen
