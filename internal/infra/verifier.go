// README: Caller identity shared by the Firebase and JWT token verifiers.
package infra

import "context"

type Identity struct {
	UID  string
	Role string
	// Claims is the raw token payload, kept for handlers that need extra fields.
	Claims map[string]interface{}
}

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}
