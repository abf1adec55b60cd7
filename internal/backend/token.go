package backend

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims the StoryPath backend embeds in its API
// tokens.
type TokenClaims struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// ParseToken reads the claims of an API token without verifying its
// signature. Only the backend holds the signing key; the client uses the
// claims to learn which account it acts as.
func ParseToken(token string) (TokenClaims, error) {
	var claims TokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenClaims{}, fmt.Errorf("parsing api token: %w", err)
	}
	if claims.Username == "" {
		return TokenClaims{}, errors.New("api token has no username claim")
	}
	return claims, nil
}
