package middleware

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
)

// FirebaseTokenClient is the part of *auth.Client the session needs.
type FirebaseTokenClient interface {
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// FirebaseVerifier accepts Firebase ID tokens. The Firebase UID is the user id.
type FirebaseVerifier struct {
	client FirebaseTokenClient
}

func NewFirebaseVerifier(client FirebaseTokenClient) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (string, error) {
	token, err := v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return token.UID, nil
}

// Revoke revokes every refresh token of the token's user, signing them out
// on all devices.
func (v *FirebaseVerifier) Revoke(ctx context.Context, idToken string) error {
	uid, err := v.Verify(ctx, idToken)
	if err != nil {
		return err
	}
	return v.client.RevokeRefreshTokens(ctx, uid)
}
