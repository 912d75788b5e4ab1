package pingtest

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/go-stomp/stomp/v3/server"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	plog "ping_client/internal/log"
	"ping_client/internal/ws"
)

// StompBroker is a STOMP broker reachable over a websocket. Upgrades are
// authenticated with the same bearer tokens as the REST API. Pushes are
// sent through an internal client connection.
type StompBroker struct {
	ln       *pipeListener
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu    sync.Mutex
	pub   *stomp.Conn
	conns map[*ws.StreamConn]struct{}
}

func newStompBroker(logger zerolog.Logger, allowedOrigins []string) *StompBroker {
	b := &StompBroker{
		ln:    newPipeListener(),
		log:   logger.With().Str("component", "stomp-broker").Logger(),
		conns: make(map[*ws.StreamConn]struct{}),
	}
	b.upgrader = websocket.Upgrader{
		CheckOrigin:  makeCheckOrigin(allowedOrigins),
		Subprotocols: []string{"v12.stomp", "v11.stomp", "v10.stomp"},
	}

	srv := &server.Server{Log: plog.Stomp(b.log)}
	go func() {
		if err := srv.Serve(b.ln); err != nil && !errors.Is(err, net.ErrClosed) {
			b.log.Error().Err(err).Msg("stomp server stopped")
		}
	}()
	return b
}

// EnableStomp serves a STOMP broker on /ws/websocket and routes every push
// through it.
func (s *Server) EnableStomp(allowedOrigins ...string) *StompBroker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broker == nil {
		s.broker = newStompBroker(s.log, allowedOrigins)
	}
	s.pub = s.broker
	return s.broker
}

// BrokerURL is the websocket endpoint of a server started at baseURL.
func BrokerURL(baseURL string) string {
	return "ws" + strings.TrimPrefix(baseURL, "http") + "/ws/websocket"
}

// ValidToken reports whether token belongs to an existing account.
func (s *Server) ValidToken(token string) bool {
	_, ok := s.authenticate(token)
	return ok
}

func (s *Server) serveBroker(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	b := s.broker
	s.mu.Unlock()
	if b == nil {
		writeMessage(w, http.StatusNotFound, "Broker not enabled")
		return
	}
	if !b.upgrader.CheckOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	token, err := brokerToken(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if !s.ValidToken(token) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	nc := ws.NewStreamConn(c)
	if !b.track(nc) {
		_ = nc.Close()
		return
	}
	if err := b.ln.push(nc); err != nil {
		b.untrack(nc)
		_ = nc.Close()
		return
	}
	go func() {
		<-nc.Done()
		b.untrack(nc)
	}()
}

// brokerToken takes the bearer token from the Authorization header or, for
// clients that cannot set headers on an upgrade, the access_token query
// parameter.
func brokerToken(r *http.Request) (string, error) {
	if tok := bearerToken(r); tok != "" {
		return tok, nil
	}
	if tok := strings.TrimSpace(r.URL.Query().Get("access_token")); tok != "" {
		return tok, nil
	}
	return "", errors.New("missing bearer token")
}

// makeCheckOrigin allows requests without an Origin header, which native
// clients do not send, and browser origins on the list.
func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(strings.ToLower(o)); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		_, ok := allowed[fmt.Sprintf("%s://%s", u.Scheme, u.Host)]
		return ok
	}
}

func (b *StompBroker) track(nc *ws.StreamConn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conns == nil {
		return false
	}
	b.conns[nc] = struct{}{}
	return true
}

func (b *StompBroker) untrack(nc *ws.StreamConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, nc)
}

// Publish sends body to topic with origin in the origin header. Failures
// are logged; the publisher connection is re-established on the next call.
func (b *StompBroker) Publish(topic, origin string, body []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conns == nil {
		return
	}
	if b.pub == nil {
		a, p := net.Pipe()
		if err := b.ln.push(p); err != nil {
			_ = a.Close()
			return
		}
		conn, err := stomp.Connect(a, stomp.ConnOpt.Logger(plog.Stomp(b.log)))
		if err != nil {
			b.log.Error().Err(err).Msg("connect publisher")
			_ = a.Close()
			return
		}
		b.pub = conn
	}
	opts := []func(*frame.Frame) error{}
	if origin != "" {
		opts = append(opts, stomp.SendOpt.Header(ws.OriginHeader, origin))
	}
	if err := b.pub.Send(topic, "application/json", body, opts...); err != nil {
		b.log.Error().Err(err).Str("topic", topic).Msg("publish")
		_ = b.pub.MustDisconnect()
		b.pub = nil
	}
}

// DropConnections closes every client connection, leaving the broker up.
func (b *StompBroker) DropConnections() {
	b.mu.Lock()
	conns := make([]*ws.StreamConn, 0, len(b.conns))
	for nc := range b.conns {
		conns = append(conns, nc)
	}
	b.mu.Unlock()
	for _, nc := range conns {
		_ = nc.Close()
	}
}

// Close stops the broker and closes every connection.
func (b *StompBroker) Close() error {
	b.DropConnections()
	b.mu.Lock()
	if b.pub != nil {
		_ = b.pub.MustDisconnect()
		b.pub = nil
	}
	b.conns = nil
	b.mu.Unlock()
	return b.ln.Close()
}

// pipeListener hands connections accepted elsewhere to the STOMP server.
type pipeListener struct {
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

func newPipeListener() *pipeListener {
	return &pipeListener{conns: make(chan net.Conn), done: make(chan struct{})}
}

func (l *pipeListener) push(c net.Conn) error {
	select {
	case l.conns <- c:
		return nil
	case <-l.done:
		return net.ErrClosed
	}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *pipeListener) Addr() net.Addr {
	return pipeAddr{}
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pingtest-broker" }
