// Package apikey owns the canonical mapping from API key material to key
// metadata. Raw keys are returned exactly once at creation; the store keeps
// only a one-way SHA-256 digest, so a stolen store dump cannot be replayed.
// Revoked records are retained for audit but rejected on lookup.
//
// The record map is sharded by digest so concurrent validations of
// different keys never contend; per-record mutable state (revocation flag,
// last-used stamp) is atomic, so revocation is immediately visible to
// in-flight validations.
package apikey
