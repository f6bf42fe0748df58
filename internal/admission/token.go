package admission

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/medrex/slot-admission/pkg/types"
)

// TokenValidator binds HTTP callers to principals via signed JWTs. The token
// carries only the opaque principal; roles always come from the registry.
type TokenValidator struct {
	jwtSecret []byte
	issuer    string
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(secret, issuer string) *TokenValidator {
	return &TokenValidator{
		jwtSecret: []byte(secret),
		issuer:    issuer,
	}
}

// principalClaims are the JWT claims carried by caller tokens
type principalClaims struct {
	Principal string `json:"principal"`
	jwt.RegisteredClaims
}

// Validate parses and validates a token and returns the caller principal
func (tv *TokenValidator) Validate(tokenString string) (types.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &principalClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.jwtSecret, nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*principalClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	if claims.Principal == "" {
		return "", fmt.Errorf("token carries no principal")
	}

	return types.Principal(claims.Principal), nil
}

// Issue signs a token for the given principal with the given lifetime
func (tv *TokenValidator) Issue(principal types.Principal, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &principalClaims{
		Principal: string(principal),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tv.issuer,
			Subject:   string(principal),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tv.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}
