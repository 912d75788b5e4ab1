package security_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ping_client/internal/security"
)

func TestSealerRoundTrip(t *testing.T) {
	s, err := security.NewSealer("correct horse battery staple")
	require.NoError(t, err)

	sealed, err := s.Seal("tok-123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "tok-123")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", plain)
}

func TestSealerRotation(t *testing.T) {
	old, err := security.NewSealer("old-secret")
	require.NoError(t, err)
	sealed, err := old.Seal("tok")
	require.NoError(t, err)

	rotated, err := security.NewSealer("new-secret", "old-secret")
	require.NoError(t, err)
	plain, err := rotated.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "tok", plain)

	other, err := security.NewSealer("unrelated")
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, security.ErrUnseal)
}

func TestSealerRejectsEmptySecret(t *testing.T) {
	_, err := security.NewSealer("  ")
	assert.Error(t, err)
}

func TestSealerFromKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.key")

	first, err := security.NewSealerFromKeyFile(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	sealed, err := first.Seal("tok")
	require.NoError(t, err)

	second, err := security.NewSealerFromKeyFile(path)
	require.NoError(t, err)
	plain, err := second.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "tok", plain)
}

func TestInspect(t *testing.T) {
	svc := security.NewTokenService("secret", time.Hour)

	live, err := svc.CreateForUser("alice")
	require.NoError(t, err)
	claims, err := security.Inspect(live)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.False(t, claims.Expired(time.Now()))

	stale, err := svc.CreateWithTTL("alice", -time.Minute)
	require.NoError(t, err)
	claims, err = security.Inspect(stale)
	require.NoError(t, err)
	assert.True(t, claims.Expired(time.Now()))

	_, err = security.Inspect("not-a-jwt")
	assert.ErrorIs(t, err, security.ErrOpaqueToken)
}

func TestTokenServiceParse(t *testing.T) {
	svc := security.NewTokenService("secret", time.Hour)
	tok, err := svc.CreateForUser("bob")
	require.NoError(t, err)

	claims, err := svc.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
	assert.False(t, claims.Expired(time.Now()))

	stale, err := svc.CreateWithTTL("bob", -time.Minute)
	require.NoError(t, err)
	_, err = svc.Parse(stale)
	assert.Error(t, err)

	_, err = security.NewTokenService("other", time.Hour).Parse(tok)
	assert.Error(t, err)
}

func TestPasswordHasher(t *testing.T) {
	h := security.NewPasswordHasher(4)
	hashed, err := h.Hash("p1")
	require.NoError(t, err)
	assert.True(t, h.Matches("p1", hashed))
	assert.False(t, h.Matches("p2", hashed))
	assert.False(t, h.Matches("p1", "not-a-hash"))
}
