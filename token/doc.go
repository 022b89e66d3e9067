// Package token issues and verifies the signed bearer tokens goShield
// accepts: short-lived access tokens carrying roles and permissions, and
// longer-lived refresh tokens carrying identity only. Verification is pure
// and stateless apart from the revocation set, which tracks rotated or
// explicitly revoked token IDs until their natural expiry.
//
// Only the configured HMAC algorithm is ever accepted; tokens presenting
// any other algorithm fail verification regardless of signature validity.
package token
