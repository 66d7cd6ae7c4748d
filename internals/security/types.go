package security

import "github.com/golang-jwt/jwt/v5"

// ScopeStatusRead grants access to the read-only query surface.
const ScopeStatusRead = "status:read"

// RequestClaims carries the owner id in the standard subject claim.
type RequestClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}
