package domain

import "context"

// CredentialKey is the fixed name the bearer token is stored under.
const CredentialKey = "token"

// CredentialStore persists the single bearer credential of the session.
// Get returns ErrNoCredential when nothing is stored.
type CredentialStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}
