// Package view holds the per-feature state behind each screen of the
// client. Every view follows the same cycle: an initial load moves it from
// Idle through Loading to Ready, user actions call the API and update the
// local state from the response, and pushes from the hub are merged by id.
package view

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/ws"
)

type State int32

const (
	Idle State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// Subscriber is the part of the hub a view needs.
type Subscriber interface {
	Subscribe(topic string, handler ws.Handler) (*ws.Subscription, error)
}

// Session is the signed-in user as views see it.
type Session interface {
	User() (domain.SessionUser, bool)
	Update(fn func(u *domain.SessionUser))
}

// Deps are the collaborators shared by all views.
type Deps struct {
	API     *api.Client
	Hub     Subscriber
	Session Session
	Log     zerolog.Logger
}

// base carries what every view has in common: its lifetime, its load
// state, its last inline error and its hub subscriptions keyed by role.
type base struct {
	deps Deps
	log  zerolog.Logger

	life   context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
	err   error
	subs  map[string]*ws.Subscription
}

func newBase(deps Deps, name string) *base {
	life, cancel := context.WithCancel(context.Background())
	return &base{
		deps:   deps,
		log:    deps.Log.With().Str("view", name).Logger(),
		life:   life,
		cancel: cancel,
		subs:   make(map[string]*ws.Subscription),
	}
}

func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err is the last failure to show inline, or nil.
func (b *base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Close cancels calls in flight and drops every subscription. Results that
// arrive afterwards are discarded.
func (b *base) Close() {
	b.cancel()
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*ws.Subscription)
	b.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (b *base) closed() bool {
	return b.life.Err() != nil
}

// scope returns a context that ends with either ctx or the view.
func (b *base) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (b *base) me() (domain.SessionUser, error) {
	if b.deps.Session == nil {
		return domain.SessionUser{}, domain.ErrNotAuthenticated
	}
	u, ok := b.deps.Session.User()
	if !ok {
		return domain.SessionUser{}, domain.ErrNotAuthenticated
	}
	return u, nil
}

// beginLocked marks the start of a load. Callers hold mu.
func (b *base) beginLocked() {
	b.state = Loading
	b.err = nil
}

// fail records err as the inline error unless the view was closed.
func (b *base) fail(err error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed() {
		b.err = err
		if b.state == Loading {
			b.state = Idle
		}
	}
	return err
}

// subscribe replaces the subscription registered under key. A nil hub
// means the view runs without pushes.
func (b *base) subscribe(key, topic string, handler ws.Handler) {
	if b.deps.Hub == nil || b.closed() {
		return
	}

	b.mu.Lock()
	old := b.subs[key]
	if old != nil && old.Topic() == topic {
		b.mu.Unlock()
		return
	}
	delete(b.subs, key)
	b.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
	sub, err := b.deps.Hub.Subscribe(topic, handler)
	if err != nil {
		b.log.Error().Err(err).Str("topic", topic).Msg("subscribe")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed() {
		go sub.Unsubscribe()
		return
	}
	b.subs[key] = sub
}

func (b *base) unsubscribe(key string) {
	b.mu.Lock()
	old := b.subs[key]
	delete(b.subs, key)
	b.mu.Unlock()
	if old != nil {
		old.Unsubscribe()
	}
}

// ownEcho reports whether ev was caused by the session user, whose own
// actions are already reflected from the API response.
func (b *base) ownEcho(ev ws.Event, self string) bool {
	return ev.Origin != "" && ev.Origin == self
}

func (b *base) dropPush(ev ws.Event, err error) {
	b.log.Warn().Err(err).Str("topic", ev.Topic).Msg("drop malformed push")
}

// upsert replaces the entry with the same id or appends item.
func upsert[T any](list []T, item T, id func(T) int64) []T {
	key := id(item)
	for i := range list {
		if id(list[i]) == key {
			list[i] = item
			return list
		}
	}
	return append(list, item)
}

// merge returns snapshot with the pushed entries folded in by id. A push
// for an entry the snapshot already has replaces it in place; the others
// follow in arrival order.
func merge[T any](snapshot, pushed []T, id func(T) int64) []T {
	out := clone(snapshot)
	for _, item := range pushed {
		out = upsert(out, item, id)
	}
	return out
}

func removeID[T any](list []T, key int64, id func(T) int64) []T {
	out := list[:0]
	for _, v := range list {
		if id(v) != key {
			out = append(out, v)
		}
	}
	return out
}

func find[T any](list []T, key int64, id func(T) int64) (T, bool) {
	for _, v := range list {
		if id(v) == key {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func clone[T any](list []T) []T {
	return append([]T(nil), list...)
}
