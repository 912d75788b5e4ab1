package session_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/gateway"
	"ping_client/internal/security"
	"ping_client/internal/session"
	"ping_client/internal/store/memory"
)

type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) Me(ctx context.Context, token string) (api.MeResponse, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(api.MeResponse), args.Error(1)
}

type recordingNav struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNav) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNav) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

func ptr[T any](v T) *T { return &v }

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("Complete profile", func(t *testing.T) {
		idn := new(MockIdentity)
		store := memory.NewCredentialStore("tok")
		nav := &recordingNav{}
		r := session.NewResolver(idn, store, nav, zerolog.Nop())

		idn.On("Me", mock.Anything, "tok").Return(api.MeResponse{
			ID:             ptr(int64(1)),
			Username:       ptr("alice"),
			Roles:          []string{"ROLE_USER"},
			Bio:            "hello",
			ProfilePicture: "uploads/a.png",
		}, nil).Once()

		assert.True(t, r.Loading())
		u, err := r.Resolve(ctx)
		require.NoError(t, err)
		assert.False(t, r.Loading())

		assert.Equal(t, int64(1), u.ID)
		assert.Equal(t, "alice", u.Username)
		assert.Equal(t, []string{"ROLE_USER"}, u.Roles)
		assert.Equal(t, "hello", u.Bio)
		assert.Equal(t, "uploads/a.png", u.ProfilePicture)
		assert.Empty(t, nav.Routes())

		got, ok := r.User()
		require.True(t, ok)
		assert.Equal(t, *u, got)
		idn.AssertExpectations(t)
	})

	missing := map[string]api.MeResponse{
		"No id":       {Username: ptr("alice"), Roles: []string{"ROLE_USER"}},
		"No username": {ID: ptr(int64(1)), Roles: []string{"ROLE_USER"}},
		"No roles":    {ID: ptr(int64(1)), Username: ptr("alice")},
	}
	for name, resp := range missing {
		t.Run(name, func(t *testing.T) {
			idn := new(MockIdentity)
			store := memory.NewCredentialStore("tok")
			nav := &recordingNav{}
			r := session.NewResolver(idn, store, nav, zerolog.Nop())
			idn.On("Me", mock.Anything, "tok").Return(resp, nil)

			u, err := r.Resolve(ctx)
			assert.Nil(t, u)
			assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
			assert.Equal(t, []string{domain.RouteLogin}, nav.Routes())
			_, ok := r.User()
			assert.False(t, ok)
			assert.False(t, r.Loading())
		})
	}

	t.Run("No credential", func(t *testing.T) {
		idn := new(MockIdentity)
		nav := &recordingNav{}
		r := session.NewResolver(idn, memory.NewCredentialStore(""), nav, zerolog.Nop())

		_, err := r.Resolve(ctx)
		assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
		assert.Equal(t, []string{domain.RouteLogin}, nav.Routes())
		idn.AssertNotCalled(t, "Me", mock.Anything, mock.Anything)
		<-r.Settled()
	})

	t.Run("Server rejects credential", func(t *testing.T) {
		idn := new(MockIdentity)
		store := memory.NewCredentialStore("tok")
		nav := &recordingNav{}
		r := session.NewResolver(idn, store, nav, zerolog.Nop())
		idn.On("Me", mock.Anything, "tok").Return(api.MeResponse{},
			&gateway.Error{Kind: gateway.KindStatus, Status: http.StatusUnauthorized, Message: "Unauthorized"})

		_, err := r.Resolve(ctx)
		assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
		assert.True(t, gateway.IsUnauthorized(err))
		assert.Equal(t, []string{domain.RouteLogin}, nav.Routes())

		_, err = store.Get(ctx)
		assert.ErrorIs(t, err, domain.ErrNoCredential)
	})

	t.Run("Expired token never reaches the server", func(t *testing.T) {
		tok, err := security.NewTokenService("secret", time.Hour).CreateWithTTL("alice", -time.Minute)
		require.NoError(t, err)

		idn := new(MockIdentity)
		store := memory.NewCredentialStore(tok)
		nav := &recordingNav{}
		r := session.NewResolver(idn, store, nav, zerolog.Nop())

		_, err = r.Resolve(ctx)
		assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
		idn.AssertNotCalled(t, "Me", mock.Anything, mock.Anything)
		_, err = store.Get(ctx)
		assert.ErrorIs(t, err, domain.ErrNoCredential)
	})

	t.Run("Cancellation keeps the credential", func(t *testing.T) {
		idn := new(MockIdentity)
		store := memory.NewCredentialStore("tok")
		nav := &recordingNav{}
		r := session.NewResolver(idn, store, nav, zerolog.Nop())
		idn.On("Me", mock.Anything, "tok").Return(api.MeResponse{},
			&gateway.Error{Kind: gateway.KindCanceled, Message: "Request canceled", Err: context.Canceled})

		_, err := r.Resolve(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, nav.Routes())
		tok, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok", tok)
		assert.False(t, r.Loading())
	})
}

func TestUpdate(t *testing.T) {
	idn := new(MockIdentity)
	r := session.NewResolver(idn, memory.NewCredentialStore("tok"), &recordingNav{}, zerolog.Nop())

	r.Update(func(u *domain.SessionUser) { u.Bio = "ignored" })
	_, ok := r.User()
	assert.False(t, ok)

	idn.On("Me", mock.Anything, "tok").Return(api.MeResponse{
		ID: ptr(int64(1)), Username: ptr("alice"), Roles: []string{},
	}, nil)
	_, err := r.Resolve(context.Background())
	require.NoError(t, err)

	r.Update(func(u *domain.SessionUser) { u.ProfilePicture = "uploads/new.png" })
	u, ok := r.User()
	require.True(t, ok)
	assert.Equal(t, "uploads/new.png", u.ProfilePicture)
	assert.Equal(t, "alice", r.Username())

	u.Roles = append(u.Roles, "ROLE_ADMIN")
	again, _ := r.User()
	assert.Empty(t, again.Roles)
}
