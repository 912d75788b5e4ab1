package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ping_client/internal/domain"
)

// Sealer protects the credential at rest.
type Sealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

type CredentialRepo struct {
	db     *sql.DB
	sealer Sealer
}

// NewCredentialRepo returns a store for the session credential. A nil
// sealer stores the token as is.
func NewCredentialRepo(db *sql.DB, sealer Sealer) *CredentialRepo {
	return &CredentialRepo{db: db, sealer: sealer}
}

var _ domain.CredentialStore = (*CredentialRepo)(nil)

func (r *CredentialRepo) Get(ctx context.Context) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, domain.CredentialKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("select credential: %w", err)
	}
	if r.sealer == nil {
		return value, nil
	}
	token, err := r.sealer.Open(value)
	if err != nil {
		return "", fmt.Errorf("open credential: %w", err)
	}
	return token, nil
}

func (r *CredentialRepo) Set(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("set credential: %w", domain.ErrInvalidInput)
	}
	value := token
	if r.sealer != nil {
		sealed, err := r.sealer.Seal(token)
		if err != nil {
			return fmt.Errorf("seal credential: %w", err)
		}
		value = sealed
	}
	query := `
		INSERT INTO credentials (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.ExecContext(ctx, query, domain.CredentialKey, value); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (r *CredentialRepo) Delete(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, domain.CredentialKey); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
