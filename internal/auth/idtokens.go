package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendrickPhan/go-verify-apple-id-token/validator"
	"google.golang.org/api/idtoken"
)

// ExternalIdentity is what a verified third-party ID token tells us about the shopper.
type ExternalIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// IdentityVerifier checks an ID token against the expected audience.
type IdentityVerifier func(ctx context.Context, token, audience string) (*ExternalIdentity, error)

var errMissingIDToken = errors.New("missing id token")

func VerifyGoogleIDToken(ctx context.Context, token, audience string) (*ExternalIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errMissingIDToken
	}
	if strings.TrimSpace(audience) == "" {
		return nil, errors.New("google client id is not configured")
	}

	payload, err := idtoken.Validate(ctx, token, audience)
	if err != nil {
		return nil, fmt.Errorf("validate google id token: %w", err)
	}
	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return nil, fmt.Errorf("unexpected issuer: %s", payload.Issuer)
	}

	return &ExternalIdentity{
		Provider: "google",
		Subject:  payload.Subject,
		Email:    claimString(payload.Claims, "email"),
		Name:     claimString(payload.Claims, "name"),
	}, nil
}

func VerifyAppleIDToken(_ context.Context, token, audience string) (*ExternalIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errMissingIDToken
	}
	if strings.TrimSpace(audience) == "" {
		return nil, errors.New("apple service id is not configured")
	}

	idToken, err := validator.NewClient().VerifyIdToken(audience, token)
	if err != nil {
		return nil, fmt.Errorf("validate apple id token: %w", err)
	}
	if idToken.Iss != "https://appleid.apple.com" {
		return nil, fmt.Errorf("unexpected issuer: %s", idToken.Iss)
	}

	return &ExternalIdentity{
		Provider: "apple",
		Subject:  idToken.Sub,
		Email:    strings.TrimSpace(strings.ToLower(idToken.Email)),
	}, nil
}

func claimString(claims map[string]any, key string) string {
	v, _ := claims[key].(string)
	if key == "email" {
		return strings.TrimSpace(strings.ToLower(v))
	}
	return strings.TrimSpace(v)
}
