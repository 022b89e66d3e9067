// Package goShield provides a pluggable authentication, authorization, and
// rate-limiting layer that sits in front of an HTTP service. It decides, per
// request, whether the caller is identified, whether the caller may proceed,
// and what identity context downstream handlers see, all driven by a
// validated configuration snapshot rather than per-route code.
//
// The package is designed for concurrent server workloads: Manager methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goShield is the public surface. It exposes [Manager], [Builder], [Config],
// and value types (SecurityContext, Request, Stats, AuditEvent). Token
// signing lives in the token sub-package, key storage in apikey, admission
// control under internal/rate, and HTTP adaptation in middleware. The core
// never touches the transport layer: it consumes a normalized [Request]
// descriptor and returns a [SecurityContext] or a typed error.
//
// # What this package must NOT do
//
//   - Own an HTTP server, router, or response serialization (middleware
//     adapts, the host application serves).
//   - Store user accounts or passwords; credentials and signing secrets are
//     supplied externally through [Config].
//   - Log or expose raw secret material (tokens, API keys) anywhere,
//     including audit events.
//
// # Performance contract
//
// Authorize is the hot path. Token verification is pure and lock-free;
// rate-limit admission takes one sharded mutex for exactly the counter
// update; API key validation takes one shard read lock. Requests for
// different identities never contend on the same lock.
package goShield
