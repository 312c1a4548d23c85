package jwt

import (
	gojwt "github.com/golang-jwt/jwt/v5"
)

// Payload is what a bearer token asserts about its holder. The role is not
// carried: it is looked up fresh on every request.
type Payload struct {
	UserID string `json:"id"`
	gojwt.RegisteredClaims
}
