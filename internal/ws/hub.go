// Package ws keeps one authenticated broker connection per session and fans
// pushed events out to the views that subscribed to them.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"ping_client/internal/domain"
	"ping_client/internal/metrics"
)

// Event is one message pushed on a topic.
type Event struct {
	Topic       string
	Body        []byte
	ContentType string
	// Origin is the user whose action produced the event, when the server
	// says so.
	Origin string
}

type Handler func(Event)

// Dialer opens one authenticated broker connection.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// Conn is a live broker connection. Done is closed when it drops.
type Conn interface {
	Subscribe(destination string) (Feed, error)
	Done() <-chan struct{}
	Close() error
}

// Feed is one subscription on a Conn. Events is closed when the
// subscription ends.
type Feed interface {
	Events() <-chan Event
	Unsubscribe() error
}

const DefaultReconnectDelay = 5 * time.Second

var errConnectionDropped = errors.New("broker connection dropped")

// Hub owns the broker connection of a session. It is created once, handed
// to the views that need pushes, and torn down with Deactivate when the
// session ends. Subscriptions outlive reconnects: each (re)connect attaches
// every live subscription again.
type Hub struct {
	dialer Dialer
	creds  domain.CredentialStore
	delay  time.Duration
	log    zerolog.Logger

	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	conn     Conn
	ready    chan struct{}
	cancel   context.CancelFunc
	loopDone chan struct{}
}

func NewHub(dialer Dialer, creds domain.CredentialStore, reconnectDelay time.Duration, logger zerolog.Logger) *Hub {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Hub{
		dialer: dialer,
		creds:  creds,
		delay:  reconnectDelay,
		log:    logger.With().Str("component", "hub").Logger(),
		subs:   make(map[*Subscription]struct{}),
		ready:  make(chan struct{}),
	}
}

// Activate starts the connection loop. Without a stored credential it
// returns domain.ErrNotAuthenticated and dials nothing. Activating an
// active hub is a no-op. The loop stops when ctx ends or on Deactivate.
func (h *Hub) Activate(ctx context.Context) error {
	token, err := h.creds.Get(ctx)
	if err != nil || token == "" {
		return domain.ErrNotAuthenticated
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.loopDone = make(chan struct{})
	go h.run(loopCtx, h.loopDone)
	return nil
}

func (h *Hub) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	attempts := 0
	op := func() error {
		if attempts > 0 {
			metrics.HubReconnectsTotal.Inc()
		}
		attempts++

		// The credential may have been removed since the last attempt.
		token, err := h.creds.Get(ctx)
		if err != nil || token == "" {
			return backoff.Permanent(domain.ErrNotAuthenticated)
		}
		conn, err := h.dialer.Dial(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		h.attach(conn)
		h.log.Info().Int("attempt", attempts).Msg("broker connected")

		select {
		case <-conn.Done():
			h.detach(conn)
			h.log.Warn().Msg("broker connection dropped")
			return errConnectionDropped
		case <-ctx.Done():
			h.detach(conn)
			return backoff.Permanent(ctx.Err())
		}
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(h.delay), ctx)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		h.log.Info().Err(err).Dur("retry_in", wait).Msg("broker reconnect scheduled")
	})
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		h.log.Info().Msg("credential removed, hub stopped")
	case err != nil && ctx.Err() == nil:
		h.log.Error().Err(err).Msg("hub stopped")
	}

	h.mu.Lock()
	if h.loopDone == done {
		h.cancel = nil
		h.loopDone = nil
	}
	h.mu.Unlock()
}

// attach publishes conn as the live connection and subscribes every
// registered subscription on it.
func (h *Hub) attach(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conn = conn
	for s := range h.subs {
		h.attachLocked(s)
	}
	close(h.ready)
	metrics.HubConnected.Set(1)
}

func (h *Hub) attachLocked(s *Subscription) {
	feed, err := h.conn.Subscribe(s.topic)
	if err != nil {
		h.log.Error().Err(err).Str("topic", s.topic).Msg("subscribe")
		return
	}
	stop := make(chan struct{})
	s.feed, s.stop = feed, stop
	go s.pump(feed, stop)
}

// detach closes conn and forgets the attachments made on it. Feeds are
// unsubscribed only once the connection is closed, so none of them waits
// for a broker receipt.
func (h *Hub) detach(conn Conn) {
	_ = conn.Close()

	h.mu.Lock()
	var feeds []Feed
	if h.conn == conn {
		for s := range h.subs {
			if f := s.releaseLocked(); f != nil {
				feeds = append(feeds, f)
			}
		}
		h.conn = nil
		h.ready = make(chan struct{})
		metrics.HubConnected.Set(0)
	}
	h.mu.Unlock()

	h.unsubscribeAll(feeds)
}

func (h *Hub) unsubscribeAll(feeds []Feed) {
	for _, f := range feeds {
		if err := f.Unsubscribe(); err != nil {
			h.log.Debug().Err(err).Msg("unsubscribe")
		}
	}
}

// Deactivate stops the loop, releases every subscription and closes the
// connection. The hub can be activated again afterwards.
func (h *Hub) Deactivate() {
	h.mu.Lock()
	cancel, done := h.cancel, h.loopDone
	h.cancel, h.loopDone = nil, nil
	subs := h.subs
	h.subs = make(map[*Subscription]struct{})
	var feeds []Feed
	for s := range subs {
		if f := s.releaseLocked(); f != nil {
			feeds = append(feeds, f)
		}
	}
	h.mu.Unlock()

	for s := range subs {
		s.deactivate()
	}
	// The loop closes the connection on its way out.
	if cancel != nil {
		cancel()
		<-done
	}
	h.unsubscribeAll(feeds)
}

// Connected reports whether a broker handshake has succeeded and the
// connection has not dropped since.
func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

// WaitConnected blocks until the hub is connected. It fails with
// domain.ErrNotConnected when the hub is not active or its loop stops.
func (h *Hub) WaitConnected(ctx context.Context) error {
	h.mu.Lock()
	ready, done := h.ready, h.loopDone
	connected := h.conn != nil
	h.mu.Unlock()

	if connected {
		return nil
	}
	if done == nil {
		return domain.ErrNotConnected
	}
	select {
	case <-ready:
		return nil
	case <-done:
		return domain.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers handler for topic. The subscription is attached at
// once when connected and on every later (re)connect. Handlers for one
// subscription run one at a time in arrival order.
func (h *Hub) Subscribe(topic string, handler Handler) (*Subscription, error) {
	if topic == "" || handler == nil {
		return nil, domain.ErrInvalidInput
	}
	s := &Subscription{hub: h, topic: topic, handler: handler, active: true}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[s] = struct{}{}
	if h.conn != nil {
		h.attachLocked(s)
	}
	return s, nil
}

// Subscription is one handler registered on a topic.
type Subscription struct {
	hub     *Hub
	topic   string
	handler Handler

	// guarded by hub.mu
	feed Feed
	stop chan struct{}

	dmu    sync.Mutex
	active bool
}

func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe detaches the subscription. Once it returns the handler is
// not called again. It must not be called from the subscription's own
// handler.
func (s *Subscription) Unsubscribe() {
	s.deactivate()

	h := s.hub
	h.mu.Lock()
	var feed Feed
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		feed = s.releaseLocked()
	}
	h.mu.Unlock()

	if feed != nil {
		h.unsubscribeAll([]Feed{feed})
	}
}

func (s *Subscription) deactivate() {
	s.dmu.Lock()
	s.active = false
	s.dmu.Unlock()
}

// releaseLocked stops delivery from the current attachment and hands back
// its feed, which the caller unsubscribes after dropping hub.mu.
func (s *Subscription) releaseLocked() Feed {
	feed := s.feed
	if feed == nil {
		return nil
	}
	close(s.stop)
	s.feed, s.stop = nil, nil
	return feed
}

func (s *Subscription) pump(feed Feed, stop <-chan struct{}) {
	events := feed.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.deliver(ev)
		case <-stop:
			return
		}
	}
}

func (s *Subscription) deliver(ev Event) {
	s.dmu.Lock()
	defer s.dmu.Unlock()
	if !s.active {
		return
	}
	metrics.HubEventsTotal.WithLabelValues(Family(ev.Topic)).Inc()
	s.handler(ev)
}
