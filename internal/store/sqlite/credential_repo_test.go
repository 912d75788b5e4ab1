package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ping_client/internal/domain"
	"ping_client/internal/security"
	"ping_client/internal/store/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.OpenFile(filepath.Join(t.TempDir(), "store", "credentials.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	require.NoError(t, sqlite.Migrate(db), "migrate must be idempotent")
	return db
}

func TestCredentialRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewCredentialRepo(openTestDB(t), nil)

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrNoCredential)

	require.NoError(t, repo.Set(ctx, "first"))
	require.NoError(t, repo.Set(ctx, "second"))
	tok, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", tok)

	require.NoError(t, repo.Delete(ctx))
	_, err = repo.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrNoCredential)

	assert.ErrorIs(t, repo.Set(ctx, ""), domain.ErrInvalidInput)
}

func TestCredentialRepoSealsAtRest(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	sealer, err := security.NewSealer("secret")
	require.NoError(t, err)
	repo := sqlite.NewCredentialRepo(db, sealer)

	require.NoError(t, repo.Set(ctx, "tok-abc"))

	var raw string
	require.NoError(t, db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, domain.CredentialKey).Scan(&raw))
	assert.NotEqual(t, "tok-abc", raw)

	tok, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok)

	other, err := security.NewSealer("different")
	require.NoError(t, err)
	_, err = sqlite.NewCredentialRepo(db, other).Get(ctx)
	assert.ErrorIs(t, err, security.ErrUnseal)
}
