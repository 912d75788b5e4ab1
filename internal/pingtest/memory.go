package pingtest

import (
	"context"
	"errors"
	"sync"

	"ping_client/internal/ws"
)

var errRejectedToken = errors.New("broker rejected token")

// MemoryBroker is an in-process broker. It satisfies ws.Dialer for the
// client side and Publisher for the server side.
type MemoryBroker struct {
	verify func(token string) bool

	mu    sync.Mutex
	conns map[*memConn]struct{}
	dials int
}

// NewMemoryBroker accepts connections whose token passes verify. A nil
// verify accepts any non-empty token.
func NewMemoryBroker(verify func(token string) bool) *MemoryBroker {
	return &MemoryBroker{verify: verify, conns: make(map[*memConn]struct{})}
}

func (b *MemoryBroker) Dial(ctx context.Context, token string) (ws.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if token == "" || (b.verify != nil && !b.verify(token)) {
		return nil, errRejectedToken
	}
	c := &memConn{broker: b, done: make(chan struct{}), feeds: make(map[*memFeed]struct{})}
	b.conns[c] = struct{}{}
	return c, nil
}

// Dials counts connection attempts, including rejected ones.
func (b *MemoryBroker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// Publish hands body to every live subscription of topic.
func (b *MemoryBroker) Publish(topic, origin string, body []byte) {
	ev := ws.Event{Topic: topic, Body: body, ContentType: "application/json", Origin: origin}
	for _, f := range b.feeds(topic) {
		f.offer(ev)
	}
}

// Subscribers counts the live subscriptions of topic.
func (b *MemoryBroker) Subscribers(topic string) int {
	return len(b.feeds(topic))
}

// DropAll closes every connection as if the broker had gone away.
func (b *MemoryBroker) DropAll() {
	b.mu.Lock()
	conns := make([]*memConn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

func (b *MemoryBroker) feeds(topic string) []*memFeed {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*memFeed
	for c := range b.conns {
		c.mu.Lock()
		for f := range c.feeds {
			if f.topic == topic {
				out = append(out, f)
			}
		}
		c.mu.Unlock()
	}
	return out
}

type memConn struct {
	broker *MemoryBroker
	done   chan struct{}
	once   sync.Once

	mu    sync.Mutex
	feeds map[*memFeed]struct{}
}

func (c *memConn) Subscribe(destination string) (ws.Feed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return nil, errors.New("connection closed")
	default:
	}
	f := &memFeed{
		conn:  c,
		topic: destination,
		in:    make(chan ws.Event, 64),
		out:   make(chan ws.Event),
		quit:  make(chan struct{}),
	}
	c.feeds[f] = struct{}{}
	go f.run()
	return f, nil
}

func (c *memConn) Done() <-chan struct{} {
	return c.done
}

func (c *memConn) Close() error {
	c.once.Do(func() {
		c.broker.mu.Lock()
		delete(c.broker.conns, c)
		c.broker.mu.Unlock()

		c.mu.Lock()
		feeds := c.feeds
		c.feeds = make(map[*memFeed]struct{})
		c.mu.Unlock()
		for f := range feeds {
			f.stop()
		}
		close(c.done)
	})
	return nil
}

type memFeed struct {
	conn  *memConn
	topic string
	in    chan ws.Event
	out   chan ws.Event
	quit  chan struct{}
	once  sync.Once
}

// run owns out so that it can be closed without racing publishers.
func (f *memFeed) run() {
	defer close(f.out)
	for {
		select {
		case ev := <-f.in:
			select {
			case f.out <- ev:
			case <-f.quit:
				return
			}
		case <-f.quit:
			return
		}
	}
}

func (f *memFeed) offer(ev ws.Event) {
	select {
	case f.in <- ev:
	case <-f.quit:
	}
}

func (f *memFeed) stop() {
	f.once.Do(func() { close(f.quit) })
}

func (f *memFeed) Events() <-chan ws.Event {
	return f.out
}

func (f *memFeed) Unsubscribe() error {
	f.conn.mu.Lock()
	delete(f.conn.feeds, f)
	f.conn.mu.Unlock()
	f.stop()
	return nil
}
