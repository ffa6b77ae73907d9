// README: Firebase ID token verification; the rider/driver role travels as a custom claim.
package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// RoleClaim is the custom claim set on each account via SetCustomUserClaims.
const RoleClaim = "role"

// idTokenVerifier is the slice of *auth.Client the verifier needs.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type FirebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier falls back to application-default credentials when
// credentialsFile is empty.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app for %q: %w", projectID, err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) VerifyToken(ctx context.Context, raw string) (*Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verify firebase id token: %w", err)
	}
	if tok.UID == "" {
		return nil, errors.New("firebase token has no uid")
	}
	return &Identity{UID: tok.UID, Role: roleFromClaims(tok.Claims), Claims: tok.Claims}, nil
}

// roleFromClaims returns "" for a missing or non-string claim; the auth
// middleware turns that into a 403.
func roleFromClaims(claims map[string]interface{}) string {
	role, _ := claims[RoleClaim].(string)
	return strings.ToLower(strings.TrimSpace(role))
}
