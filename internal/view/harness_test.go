package view_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/gateway"
	"ping_client/internal/pingtest"
	"ping_client/internal/session"
	"ping_client/internal/store/memory"
	"ping_client/internal/view"
	"ping_client/internal/ws"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// world is one fake Ping server with an in-memory broker shared by every
// signed-in client of a test.
type world struct {
	t      *testing.T
	srv    *pingtest.Server
	broker *pingtest.MemoryBroker
	url    string
}

func newWorld(t *testing.T) *world {
	t.Helper()
	srv := pingtest.NewServer(pingtest.Options{})
	broker := pingtest.NewMemoryBroker(srv.ValidToken)
	srv.SetPublisher(broker)
	return &world{t: t, srv: srv, broker: broker, url: pingtest.Start(t, srv)}
}

func (w *world) addUser(u domain.User) domain.User {
	return w.srv.AddUser(u, "secret-pass")
}

// client is one signed-in user with a resolved session and a live hub.
type client struct {
	api     *api.Client
	session *session.Resolver
	hub     *ws.Hub
	deps    view.Deps
}

func (w *world) signIn(username string) *client {
	t := w.t
	t.Helper()
	ctx := context.Background()

	creds := memory.NewCredentialStore(w.srv.TokenFor(username))
	apiClient := api.New(gateway.New(w.url, creds, gateway.Options{}))
	res := session.NewResolver(apiClient, creds, nil, zerolog.Nop())
	_, err := res.Resolve(ctx)
	require.NoError(t, err)

	hub := ws.NewHub(w.broker, creds, 20*time.Millisecond, zerolog.Nop())
	require.NoError(t, hub.Activate(ctx))
	t.Cleanup(hub.Deactivate)

	return &client{
		api:     apiClient,
		session: res,
		hub:     hub,
		deps:    view.Deps{API: apiClient, Hub: hub, Session: res, Log: zerolog.Nop()},
	}
}

// waitSubscribed blocks until topic has n live subscriptions on the broker.
func (w *world) waitSubscribed(topic string, n int) {
	w.t.Helper()
	require.Eventually(w.t, func() bool { return w.broker.Subscribers(topic) == n }, waitFor, tick)
}

// pushDuringFetch routes later sign-ins through a front server. A GET of
// path is answered with the snapshot taken before push runs, and the
// answer is held until landed reports true or waitFor passes.
func (w *world) pushDuringFetch(path string, push func(), landed func() bool) {
	front := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != path {
			w.srv.ServeHTTP(rw, r)
			return
		}
		snapshot := httptest.NewRecorder()
		w.srv.ServeHTTP(snapshot, r)
		push()
		deadline := time.Now().Add(waitFor)
		for !landed() && time.Now().Before(deadline) {
			time.Sleep(tick)
		}
		for k, v := range snapshot.Header() {
			rw.Header()[k] = v
		}
		rw.WriteHeader(snapshot.Code)
		_, _ = rw.Write(snapshot.Body.Bytes())
	}))
	w.t.Cleanup(front.Close)
	w.url = front.URL
}

// befriend makes a and b accepted friends through the API.
func befriend(t *testing.T, a, b *client, bName string) {
	t.Helper()
	ctx := context.Background()
	aUser, _ := a.session.User()
	reply, err := a.api.SendFriendRequest(ctx, aUser.Username, bName)
	require.NoError(t, err)
	require.NotZero(t, reply.ID)
	_, err = b.api.RespondFriendRequest(ctx, reply.ID, domain.FriendshipAccepted)
	require.NoError(t, err)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
