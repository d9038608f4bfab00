package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	jwtIssuer       = "nano-feed"
	maxRevokedSaved = 10000
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

// Claims are the claims carried by locally issued session tokens.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTIssuer signs and verifies HS256 session tokens. Signed-out token ids are
// remembered until the token would have expired anyway.
type JWTIssuer struct {
	secret  []byte
	ttl     time.Duration
	revoked *expirable.LRU[string, struct{}]
}

func NewJWTIssuer(secret string, ttl time.Duration) *JWTIssuer {
	return &JWTIssuer{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: expirable.NewLRU[string, struct{}](maxRevokedSaved, nil, ttl),
	}
}

// Issue signs a token for userID.
func (j *JWTIssuer) Issue(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    jwtIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func (j *JWTIssuer) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" || claims.Issuer != jwtIssuer {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (j *JWTIssuer) Verify(_ context.Context, token string) (string, error) {
	claims, err := j.parse(token)
	if err != nil {
		return "", err
	}
	if j.revoked.Contains(claims.ID) {
		return "", ErrTokenRevoked
	}
	return claims.UserID, nil
}

// Revoke signs the token out.
func (j *JWTIssuer) Revoke(_ context.Context, token string) error {
	claims, err := j.parse(token)
	if err != nil {
		return err
	}
	j.revoked.Add(claims.ID, struct{}{})
	return nil
}
