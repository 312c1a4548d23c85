package jwt

import (
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Decode verifies the signature and expiry of token and returns its payload.
func Decode(token string, secret string) (*Payload, error) {
	var payload Payload
	parsed, err := gojwt.ParseWithClaims(token, &payload, func(t *gojwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("Decode: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("Decode: invalid token")
	}
	if payload.UserID == "" {
		return nil, fmt.Errorf("Decode: token has no user id")
	}
	return &payload, nil
}
