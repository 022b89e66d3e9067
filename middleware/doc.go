// Package middleware adapts the security core to net/http. It is the only
// place that reads the wire: it normalizes the incoming request, calls
// Authorize, and translates the decision into status codes, headers, and
// the JSON error payload. Any other transport can do the same against the
// Manager directly.
package middleware
