package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenManager issues and validates the signed session tokens that act
// as the identity provider's proof of authentication. The chat core
// itself never authenticates; it consumes the validated username.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// CustomClaims defines the data stored inside the JWT.
type CustomClaims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Generate creates a signed JWT for a specific user.
func (t *TokenManager) Generate(username string, roles []string) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "direct-chat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses the token, checks signature and expiration, and
// returns the authenticated username.
func (t *TokenManager) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims.Username, nil
	}
	return "", jwt.ErrSignatureInvalid
}
