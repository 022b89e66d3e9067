// Package rate implements fixed-window admission control per identity key.
// The window is 60 seconds; within it every identity gets the configured
// request budget plus a burst allowance that absorbs short spikes without a
// hard cliff. Counters are sharded so distinct identities never contend,
// and idle entries are evicted lazily on the request path, which bounds
// memory without a background task.
//
// A Redis-backed limiter with the same window semantics is provided for
// multi-instance deployments; it is an extension point, not the default.
package rate
