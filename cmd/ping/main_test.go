package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ping_client/internal/domain"
	"ping_client/internal/pingtest"
)

// syncBuffer is written by push handlers while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type cliEnv struct {
	t   *testing.T
	srv *pingtest.Server
}

func newCLIEnv(t *testing.T) *cliEnv {
	srv := pingtest.NewServer(pingtest.Options{})
	srv.EnableStomp()
	url := pingtest.Start(t, srv)

	t.Setenv("PING_ENV", "test")
	t.Setenv("PING_LOG_LEVEL", "error")
	t.Setenv("PING_API_URL", url)
	t.Setenv("PING_BROKER_URL", pingtest.BrokerURL(url))
	t.Setenv("PING_STORE_PATH", filepath.Join(t.TempDir(), "credentials.db"))
	t.Setenv("PING_STORE_SECRET", "cli-test-secret")
	t.Setenv("PING_RECONNECT_DELAY", "50ms")
	return &cliEnv{t: t, srv: srv}
}

func (e *cliEnv) run(args ...string) (string, error) {
	return e.runContext(context.Background(), &syncBuffer{}, args...)
}

func (e *cliEnv) runContext(ctx context.Context, out *syncBuffer, args ...string) (string, error) {
	app := newApp()
	app.Writer = out
	app.ErrWriter = out
	err := app.RunContext(ctx, append([]string{"ping"}, args...))
	return out.String(), err
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, out)
	return out
}

func TestRegisterLoginWhoami(t *testing.T) {
	e := newCLIEnv(t)

	out := e.mustRun("register", "--phone", "555-0101", "--password", "pw", "alice")
	assert.Contains(t, out, "Registered alice")

	_, err := e.run("login", "--password", "pw", "--verify-password", "other", "alice")
	assert.ErrorIs(t, err, domain.ErrPasswordMismatch)

	_, err = e.run("whoami")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	out = e.mustRun("login", "--password", "pw", "alice")
	assert.Contains(t, out, "Signed in as alice")

	out = e.mustRun("--json", "whoami")
	var me domain.SessionUser
	require.NoError(t, json.Unmarshal([]byte(out), &me))
	assert.Equal(t, "alice", me.Username)

	assert.Contains(t, e.mustRun("verify"), "Token is valid")

	e.mustRun("logout")
	_, err = e.run("whoami")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestWrongPasswordIsReported(t *testing.T) {
	e := newCLIEnv(t)
	e.srv.AddUser(domain.User{Username: "alice"}, "pw")

	_, err := e.run("login", "--password", "nope", "alice")
	require.Error(t, err)
	assert.Equal(t, "Invalid username or password", err.Error())
}

func TestPasswordRecoveryCommands(t *testing.T) {
	e := newCLIEnv(t)
	e.srv.AddUser(domain.User{Username: "alice", Phone: "555-0101"}, "old")

	e.mustRun("forgot-password", "555-0101")
	_, err := e.run("verify-code", "--phone", "555-0101", "12345")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	e.mustRun("verify-code", "--phone", "555-0101", "123456")
	assert.Contains(t, e.mustRun("reset-password", "--phone", "555-0101", "--password", "new"), "Password reset for alice")

	e.mustRun("login", "--password", "new", "alice")
}

func TestFriendsAndChatCommands(t *testing.T) {
	e := newCLIEnv(t)
	e.srv.AddUser(domain.User{Username: "alice"}, "pw")
	e.srv.AddUser(domain.User{Username: "bob"}, "pw")

	e.mustRun("login", "--password", "pw", "alice")
	assert.Contains(t, e.mustRun("friends", "send", "bob"), "sent to bob")

	e.mustRun("login", "--password", "pw", "bob")
	out := e.mustRun("--json", "friends", "pending")
	var pending []domain.FriendshipRequest
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0].SenderUsername)

	e.mustRun("friends", "accept", itoa(pending[0].ID))
	assert.Contains(t, e.mustRun("friends", "accepted"), "alice")

	out = e.mustRun("--json", "chat", "private", "--name", "bob-alice", "alice")
	var conv struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &conv))
	require.NotZero(t, conv.ID)

	out = e.mustRun("chat", "send", itoa(conv.ID), "hello", "alice")
	assert.Contains(t, out, "bob: hello alice")
	assert.Contains(t, e.mustRun("chat", "list"), "alice")
}

func TestAdminCommandNeedsRole(t *testing.T) {
	e := newCLIEnv(t)
	e.srv.AddUser(domain.User{Username: "alice"}, "pw")
	e.srv.AddUser(domain.User{Username: "root", Roles: []string{"ROLE_ADMIN"}}, "pw")

	e.mustRun("login", "--password", "pw", "alice")
	_, err := e.run("admin", "users")
	require.Error(t, err)

	e.mustRun("login", "--password", "pw", "root")
	assert.Contains(t, e.mustRun("admin", "users", "--last-name", "x"), "USERNAME")
	e.mustRun("admin", "create-role", "ROLE_MODERATOR")
	assert.Contains(t, e.mustRun("admin", "assign-role", "alice", "ROLE_MODERATOR"), "Assigned ROLE_MODERATOR for alice")
}

func TestListenPrintsPushes(t *testing.T) {
	e := newCLIEnv(t)
	e.srv.AddUser(domain.User{Username: "alice"}, "pw")
	e.srv.AddUser(domain.User{Username: "bob"}, "pw")
	e.mustRun("login", "--password", "pw", "alice")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		_, err := e.runContext(ctx, out, "--json", "listen")
		done <- err
	}()

	// The subscription lands asynchronously, so keep notifying until one
	// push is printed.
	require.Eventually(t, func() bool {
		e.srv.Notify("alice", "bob", "bob liked your post")
		return strings.Contains(out.String(), "bob liked your post")
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("listen did not stop")
	}

	line := strings.SplitN(strings.TrimSpace(out.String()), "\n", 2)[0]
	var got pushLine
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	assert.Equal(t, "/topic/notifications/alice", got.Topic)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
