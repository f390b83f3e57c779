package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every way a caller can fail to prove who they are:
// missing or malformed Authorization header, bad signature, expired token,
// missing userId claim.
var ErrInvalidToken = errors.New("invalid token")

// TokenParser verifies HS256 tokens issued by the user service and extracts
// the buyer id from the userId claim. Both services share the same secret.
type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) (*TokenParser, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes for HS256")
	}
	return &TokenParser{secret: []byte(secret)}, nil
}

// BuyerFromBearer parses an "Authorization: Bearer <token>" header value.
func (p *TokenParser) BuyerFromBearer(header string) (int64, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return 0, fmt.Errorf("%w: authorization header is not a bearer token", ErrInvalidToken)
	}
	return p.BuyerFromToken(strings.TrimSpace(header[len(prefix):]))
}

func (p *TokenParser) BuyerFromToken(token string) (int64, error) {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}
	raw, ok := claims["userId"]
	if !ok {
		return 0, fmt.Errorf("%w: userId claim missing", ErrInvalidToken)
	}
	id, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: userId claim is not a number", ErrInvalidToken)
	}
	return int64(id), nil
}
