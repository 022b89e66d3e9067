package internaldefs

import (
	goShield "github.com/MrEthical07/goShield"
)

// CounterDef binds one metric ID to its exported name and help text.
type CounterDef struct {
	ID   goShield.MetricID
	Name string
	Help string
}

// HistogramDef binds one histogram ID to its exported name and help text.
type HistogramDef struct {
	ID   goShield.MetricID
	Name string
	Help string
}

// CounterDefs enumerates every exported counter. Both exporters iterate
// this slice so names never diverge between them.
var CounterDefs = []CounterDef{
	{ID: goShield.MetricRequestAdmitted, Name: "goshield_request_admitted_total", Help: "Requests that passed authentication and rate limiting."},
	{ID: goShield.MetricRequestRejected, Name: "goshield_request_rejected_total", Help: "Requests rejected by authentication."},
	{ID: goShield.MetricRequestRateLimited, Name: "goshield_request_rate_limited_total", Help: "Requests rejected by rate limiting."},
	{ID: goShield.MetricRequestExcluded, Name: "goshield_request_excluded_total", Help: "Requests passed through on excluded paths."},
	{ID: goShield.MetricTokenIssued, Name: "goshield_token_issued_total", Help: "Issued access and refresh tokens."},
	{ID: goShield.MetricTokenVerified, Name: "goshield_token_verified_total", Help: "Successful token verifications."},
	{ID: goShield.MetricTokenRejected, Name: "goshield_token_rejected_total", Help: "Failed token verifications."},
	{ID: goShield.MetricTokenRefreshed, Name: "goshield_token_refreshed_total", Help: "Successful refresh token rotations."},
	{ID: goShield.MetricTokenRevoked, Name: "goshield_token_revoked_total", Help: "Explicit token revocations."},
	{ID: goShield.MetricAPIKeyCreated, Name: "goshield_api_key_created_total", Help: "Created API keys."},
	{ID: goShield.MetricAPIKeyRevoked, Name: "goshield_api_key_revoked_total", Help: "Revoked API keys."},
	{ID: goShield.MetricAPIKeyRejected, Name: "goshield_api_key_rejected_total", Help: "Failed API key validations."},
	{ID: goShield.MetricPermissionDenied, Name: "goshield_permission_denied_total", Help: "Requests rejected by role or permission guards."},
}

// HistogramDefs enumerates every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goShield.MetricAuthorizeLatency, Name: "goshield_authorize_latency_seconds", Help: "Authorize latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// microsecond bucket edges of the core histogram.
var HistogramBounds = []string{
	"0.00005",
	"0.0001",
	"0.00025",
	"0.0005",
	"0.001",
	"0.0025",
	"0.005",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with characters safe for
// metric attribute values.
var HistogramBoundSuffix = []string{
	"0_00005",
	"0_0001",
	"0_00025",
	"0_0005",
	"0_001",
	"0_0025",
	"0_005",
	"inf",
}

// NormalizeBuckets widens a snapshot slice to the fixed bucket array,
// zero-filling when the snapshot omitted the histogram.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form the
// Prometheus exposition format requires.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
