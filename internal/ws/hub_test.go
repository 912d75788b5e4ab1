package ws_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ping_client/internal/domain"
	"ping_client/internal/store/memory"
	"ping_client/internal/ws"
)

// fakeBroker hands out in-memory connections and lets tests publish to
// every live subscription of a topic.
type fakeBroker struct {
	mu     sync.Mutex
	conns  []*fakeConn
	tokens []string
	fail   int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{}
}

func (b *fakeBroker) Dial(_ context.Context, token string) (ws.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, token)
	if b.fail > 0 {
		b.fail--
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{done: make(chan struct{})}
	b.conns = append(b.conns, c)
	return c, nil
}

func (b *fakeBroker) last() *fakeConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns[len(b.conns)-1]
}

func (b *fakeBroker) dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tokens)
}

type fakeConn struct {
	mu     sync.Mutex
	feeds  []*fakeFeed
	done   chan struct{}
	once   sync.Once
	closed atomic.Bool
}

func (c *fakeConn) Subscribe(destination string) (ws.Feed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := &fakeFeed{topic: destination, events: make(chan ws.Event, 8)}
	c.feeds = append(c.feeds, f)
	return f, nil
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	c.drop()
	return nil
}

func (c *fakeConn) drop() {
	c.once.Do(func() { close(c.done) })
}

// publish delivers to every feed on topic that is still subscribed.
func (c *fakeConn) publish(topic, origin, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.feeds {
		if f.topic == topic && !f.unsubscribed.Load() {
			f.events <- ws.Event{Topic: topic, Body: []byte(body), ContentType: "application/json", Origin: origin}
		}
	}
}

func (c *fakeConn) live(topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.feeds {
		if f.topic == topic && !f.unsubscribed.Load() {
			n++
		}
	}
	return n
}

type fakeFeed struct {
	topic        string
	events       chan ws.Event
	unsubscribed atomic.Bool
}

func (f *fakeFeed) Events() <-chan ws.Event { return f.events }

func (f *fakeFeed) Unsubscribe() error {
	f.unsubscribed.Store(true)
	return nil
}

type collector struct {
	mu     sync.Mutex
	events []ws.Event
}

func (c *collector) handle(ev ws.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newHub(t *testing.T, b *fakeBroker, token string) (*ws.Hub, *memory.CredentialStore) {
	t.Helper()
	store := memory.NewCredentialStore(token)
	h := ws.NewHub(b, store, 10*time.Millisecond, zerolog.Nop())
	t.Cleanup(h.Deactivate)
	return h, store
}

func connect(t *testing.T, h *ws.Hub) {
	t.Helper()
	require.NoError(t, h.Activate(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.WaitConnected(ctx))
}

func TestActivateWithoutCredential(t *testing.T) {
	b := newFakeBroker()
	h, _ := newHub(t, b, "")

	err := h.Activate(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	assert.False(t, h.Connected())
	assert.Zero(t, b.dials())
	assert.ErrorIs(t, h.WaitConnected(context.Background()), domain.ErrNotConnected)
}

func TestDialCarriesStoredToken(t *testing.T) {
	b := newFakeBroker()
	h, _ := newHub(t, b, "tok-1")
	connect(t, h)

	assert.True(t, h.Connected())
	assert.Equal(t, []string{"tok-1"}, b.tokens)

	require.NoError(t, h.Activate(context.Background()))
	assert.Equal(t, 1, b.dials())
}

func TestSubscribeBeforeAndAfterConnect(t *testing.T) {
	b := newFakeBroker()
	h, _ := newHub(t, b, "tok")

	early := &collector{}
	_, err := h.Subscribe(ws.FriendsTopic("alice"), early.handle)
	require.NoError(t, err)

	connect(t, h)

	late := &collector{}
	_, err = h.Subscribe(ws.FriendsTopic("alice"), late.handle)
	require.NoError(t, err)

	b.last().publish("/topic/friends/alice", "bob", `{"idFriendship":7}`)

	require.Eventually(t, func() bool { return early.count() == 1 && late.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "bob", early.events[0].Origin)
	assert.JSONEq(t, `{"idFriendship":7}`, string(early.events[0].Body))
}

func TestResubscribeDeliversOnce(t *testing.T) {
	b := newFakeBroker()
	h, _ := newHub(t, b, "tok")
	connect(t, h)
	topic := ws.ConversationTopic(4)

	first := &collector{}
	sub, err := h.Subscribe(topic, first.handle)
	require.NoError(t, err)
	sub.Unsubscribe()
	sub.Unsubscribe()

	second := &collector{}
	_, err = h.Subscribe(topic, second.handle)
	require.NoError(t, err)

	assert.Equal(t, 1, b.last().live(topic))
	b.last().publish(topic, "", `{"messageId":1}`)

	require.Eventually(t, func() bool { return second.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, second.count())
	assert.Zero(t, first.count())
}

func TestNoDeliveryAfterUnsubscribe(t *testing.T) {
	b := newFakeBroker()
	h, _ := newHub(t, b, "tok")
	connect(t, h)
	topic := ws.NotificationsTopic("alice")

	var calls atomic.Int32
	var unsubscribed atomic.Bool
	sub, err := h.Subscribe(topic, func(ws.Event) {
		if unsubscribed.Load() {
			t.Error("handler called after Unsubscribe returned")
		}
		calls.Add(1)
	})
	require.NoError(t, err)

	conn := b.last()
	conn.publish(topic, "", `{}`)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	sub.Unsubscribe()
	unsubscribed.Store(true)
	conn.publish(topic, "", `{}`)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestReconnectReattachesSubscriptions(t *testing.T) {
	b := newFakeBroker()
	h, _ := newHub(t, b, "tok")
	topic := ws.CommentTopic("alice")

	got := &collector{}
	_, err := h.Subscribe(topic, got.handle)
	require.NoError(t, err)
	connect(t, h)

	first := b.last()
	b.mu.Lock()
	b.fail = 1
	b.mu.Unlock()
	first.drop()

	require.Eventually(t, func() bool { return b.dials() == 3 && h.Connected() }, 2*time.Second, 5*time.Millisecond)
	second := b.last()
	require.NotSame(t, first, second)
	assert.Equal(t, 1, second.live(topic))

	second.publish(topic, "", `{"id":5}`)
	require.Eventually(t, func() bool { return got.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCredentialRemovalStopsReconnect(t *testing.T) {
	b := newFakeBroker()
	h, store := newHub(t, b, "tok")
	connect(t, h)

	require.NoError(t, store.Delete(context.Background()))
	b.last().drop()

	assert.Eventually(t, func() bool { return !h.Connected() }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, b.dials())
	assert.ErrorIs(t, h.WaitConnected(context.Background()), domain.ErrNotConnected)
}

func TestDeactivateReleasesEverything(t *testing.T) {
	b := newFakeBroker()
	h, _ := newHub(t, b, "tok")
	got := &collector{}
	_, err := h.Subscribe(ws.InfoTopic("alice"), got.handle)
	require.NoError(t, err)
	connect(t, h)
	conn := b.last()

	h.Deactivate()

	assert.False(t, h.Connected())
	assert.True(t, conn.closed.Load())
	assert.Zero(t, conn.live(ws.InfoTopic("alice")))

	conn.publish(ws.InfoTopic("alice"), "", `{}`)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, got.count())

	connect(t, h)
	assert.Equal(t, 2, b.dials())
}

func TestSubscribeRejectsEmptyInput(t *testing.T) {
	h, _ := newHub(t, newFakeBroker(), "tok")
	_, err := h.Subscribe("", func(ws.Event) {})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.Subscribe("/topic/x", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "/topic/conversations/4", ws.ConversationTopic(4))
	assert.Equal(t, "/topic/friends/alice", ws.FriendsTopic("alice"))
	assert.Equal(t, "/topic/notifications/alice", ws.NotificationsTopic("alice"))
	assert.Equal(t, "/topic/update-picture/alice", ws.PictureTopic("alice"))
	assert.Equal(t, "/topic/update-info/alice", ws.InfoTopic("alice"))
	assert.Equal(t, "/topic/comment/alice", ws.CommentTopic("alice"))
	assert.Equal(t, "update-info", ws.Family("/topic/update-info/alice"))
}
