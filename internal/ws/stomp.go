package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	plog "ping_client/internal/log"
)

// DefaultBrokerURL is the broker endpoint of a local Ping server.
const DefaultBrokerURL = "ws://localhost:8081/ws/websocket"

const DefaultUnsubscribeTimeout = 5 * time.Second

var stompSubprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// StompDialer connects to a STOMP broker over a websocket. The bearer
// token goes on the upgrade request and on the STOMP CONNECT frame.
type StompDialer struct {
	URL string
	// WS defaults to websocket.DefaultDialer.
	WS *websocket.Dialer
	// UnsubscribeTimeout bounds the wait for an UNSUBSCRIBE receipt.
	// Defaults to DefaultUnsubscribeTimeout.
	UnsubscribeTimeout time.Duration
	// Log receives the STOMP client's own diagnostics.
	Log zerolog.Logger
}

func (d *StompDialer) Dial(ctx context.Context, token string) (Conn, error) {
	target := d.URL
	if target == "" {
		target = DefaultBrokerURL
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}

	dialer := websocket.DefaultDialer
	if d.WS != nil {
		dialer = d.WS
	}
	wsd := *dialer
	wsd.Subprotocols = stompSubprotocols

	unsubscribeTimeout := d.UnsubscribeTimeout
	if unsubscribeTimeout <= 0 {
		unsubscribeTimeout = DefaultUnsubscribeTimeout
	}

	bearer := "Bearer " + token
	c, resp, err := wsd.DialContext(ctx, target, http.Header{"Authorization": {bearer}})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	nc := NewStreamConn(c)
	// The STOMP handshake has no context of its own.
	stop := context.AfterFunc(ctx, func() { _ = nc.Close() })
	defer stop()

	sc, err := stomp.Connect(nc,
		stomp.ConnOpt.Host(u.Hostname()),
		stomp.ConnOpt.Header("Authorization", bearer),
		stomp.ConnOpt.Logger(plog.Stomp(d.Log)),
		stomp.ConnOpt.UnsubscribeReceiptTimeout(unsubscribeTimeout),
	)
	if err != nil {
		_ = nc.Close()
		return nil, fmt.Errorf("stomp connect: %w", err)
	}
	return &stompConn{conn: sc, nc: nc}, nil
}

type stompConn struct {
	conn *stomp.Conn
	nc   *StreamConn
}

func (c *stompConn) Subscribe(destination string) (Feed, error) {
	sub, err := c.conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", destination, err)
	}
	f := &stompFeed{
		sub:    sub,
		events: make(chan Event),
		quit:   make(chan struct{}),
	}
	go f.forward(destination)
	return f, nil
}

func (c *stompConn) Done() <-chan struct{} {
	return c.nc.Done()
}

func (c *stompConn) Close() error {
	err := c.conn.MustDisconnect()
	_ = c.nc.Close()
	return err
}

type stompFeed struct {
	sub    *stomp.Subscription
	events chan Event
	quit   chan struct{}
	once   sync.Once
}

// forward hands messages to Events until the subscription ends or Events
// is abandoned. go-stomp's reader blocks on sub.C, and an UNSUBSCRIBE
// receipt is only seen once the messages ahead of it are taken, so sub.C
// is drained until go-stomp closes it.
func (f *stompFeed) forward(destination string) {
	f.pass(destination)
	close(f.events)
	for range f.sub.C {
	}
}

func (f *stompFeed) pass(destination string) {
	for msg := range f.sub.C {
		if msg.Err != nil {
			return
		}
		ev := Event{
			Topic:       destination,
			Body:        msg.Body,
			ContentType: msg.ContentType,
		}
		if msg.Header != nil {
			ev.Origin = msg.Header.Get(OriginHeader)
		}
		select {
		case f.events <- ev:
		case <-f.quit:
			return
		}
	}
}

func (f *stompFeed) Events() <-chan Event {
	return f.events
}

func (f *stompFeed) Unsubscribe() error {
	var err error
	f.once.Do(func() {
		close(f.quit)
		err = f.sub.Unsubscribe()
	})
	return err
}
