package memory

import (
	"context"
	"sync"

	"ping_client/internal/domain"
)

// CredentialStore keeps the credential for the lifetime of the process.
type CredentialStore struct {
	mu    sync.RWMutex
	token string
}

func NewCredentialStore(token string) *CredentialStore {
	return &CredentialStore{token: token}
}

var _ domain.CredentialStore = (*CredentialStore)(nil)

func (s *CredentialStore) Get(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", domain.ErrNoCredential
	}
	return s.token, nil
}

func (s *CredentialStore) Set(_ context.Context, token string) error {
	if token == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *CredentialStore) Delete(_ context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}
