// Package session resolves the stored credential into the signed-in user.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/gateway"
	"ping_client/internal/security"
)

// Identity is the "who am I" endpoint.
type Identity interface {
	Me(ctx context.Context, token string) (api.MeResponse, error)
}

var errIncompleteIdentity = errors.New("profile lacks id, username or roles")

// Resolver owns the session user. It starts in the loading state and
// leaves it once the first Resolve finishes, whatever the outcome.
type Resolver struct {
	identity Identity
	creds    domain.CredentialStore
	nav      domain.Navigator
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	user    *domain.SessionUser
	loading bool

	settled     chan struct{}
	settledOnce sync.Once
}

func NewResolver(identity Identity, creds domain.CredentialStore, nav domain.Navigator, logger zerolog.Logger) *Resolver {
	return &Resolver{
		identity: identity,
		creds:    creds,
		nav:      nav,
		log:      logger.With().Str("component", "session").Logger(),
		now:      time.Now,
		loading:  true,
		settled:  make(chan struct{}),
	}
}

// Resolve reads the stored credential and asks the server who it belongs
// to. Every failure except cancellation redirects to the login route and
// returns an error wrapping domain.ErrNotAuthenticated. Failures that prove
// the credential is bad also delete it.
func (r *Resolver) Resolve(ctx context.Context) (*domain.SessionUser, error) {
	defer r.settle()

	token, err := r.creds.Get(ctx)
	if err != nil || token == "" {
		return nil, r.reject(ctx, false, domain.ErrNoCredential)
	}

	if claims, err := security.Inspect(token); err == nil && claims.Expired(r.now()) {
		return nil, r.reject(ctx, true, errors.New("credential expired"))
	}

	me, err := r.identity.Me(ctx, token)
	if err != nil {
		if gateway.IsKind(err, gateway.KindCanceled) {
			return nil, err
		}
		return nil, r.reject(ctx, true, err)
	}
	if me.ID == nil || me.Username == nil || me.Roles == nil {
		return nil, r.reject(ctx, false, errIncompleteIdentity)
	}

	u := &domain.SessionUser{
		ID:             *me.ID,
		Username:       *me.Username,
		FirstName:      me.FirstName,
		LastName:       me.LastName,
		Phone:          me.Phone,
		Bio:            me.Bio,
		ProfilePicture: me.ProfilePicture,
		Roles:          append([]string(nil), me.Roles...),
	}
	r.mu.Lock()
	r.user = u
	r.mu.Unlock()

	r.log.Debug().Str("username", u.Username).Msg("session resolved")
	out := *u
	return &out, nil
}

func (r *Resolver) reject(ctx context.Context, clear bool, cause error) error {
	r.mu.Lock()
	r.user = nil
	r.mu.Unlock()

	if clear {
		if err := r.creds.Delete(ctx); err != nil {
			r.log.Warn().Err(err).Msg("delete stored credential")
		}
	}
	r.log.Info().Err(cause).Bool("cleared", clear).Msg("session not authenticated")
	if r.nav != nil {
		r.nav.Navigate(domain.RouteLogin)
	}
	return fmt.Errorf("%w: %w", domain.ErrNotAuthenticated, cause)
}

func (r *Resolver) settle() {
	r.settledOnce.Do(func() {
		r.mu.Lock()
		r.loading = false
		r.mu.Unlock()
		close(r.settled)
	})
}

// Loading is true until the first resolution finishes.
func (r *Resolver) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// Settled is closed when Loading turns false.
func (r *Resolver) Settled() <-chan struct{} {
	return r.settled
}

// User returns a copy of the session user.
func (r *Resolver) User() (domain.SessionUser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.user == nil {
		return domain.SessionUser{}, false
	}
	u := *r.user
	u.Roles = append([]string(nil), r.user.Roles...)
	return u, true
}

// Username is the signed-in username, or "" before resolution.
func (r *Resolver) Username() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.user == nil {
		return ""
	}
	return r.user.Username
}

// Update applies a local edit to the session user, typically after a
// profile change the server has confirmed. It is a no-op when signed out.
func (r *Resolver) Update(fn func(u *domain.SessionUser)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user != nil {
		fn(r.user)
	}
}

// Clear forgets the session user without touching the stored credential.
func (r *Resolver) Clear() {
	r.mu.Lock()
	r.user = nil
	r.mu.Unlock()
}
