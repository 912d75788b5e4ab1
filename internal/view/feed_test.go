package view_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/gateway"
	"ping_client/internal/view"
	"ping_client/internal/ws"
)

func TestFeedLikes(t *testing.T) {
	w := newWorld(t)
	w.addUser(domain.User{Username: "alice"})
	w.addUser(domain.User{Username: "bob"})
	w.addUser(domain.User{Username: "carol"})
	alice := w.signIn("alice")
	bob := w.signIn("bob")
	befriend(t, alice, bob, "bob")
	older := w.srv.AddPost("bob", "sunset")
	newer := w.srv.AddPost("bob", "sunrise")
	w.srv.AddPost("carol", "not a friend")
	ctx := context.Background()

	bobUser, _ := bob.session.User()
	_, err := bob.api.Like(ctx, older.ID, bobUser.ID)
	require.NoError(t, err)

	v := view.NewFeed(alice.deps)
	t.Cleanup(v.Close)
	assert.Equal(t, view.Idle, v.State())
	require.NoError(t, v.Load(ctx))
	assert.Equal(t, view.Ready, v.State())
	assert.NoError(t, v.Err())

	items := v.Items()
	require.Len(t, items, 2)
	assert.Equal(t, newer.ID, items[0].ID)
	assert.Equal(t, int64(0), items[0].Likes)
	assert.Equal(t, older.ID, items[1].ID)
	assert.Equal(t, int64(1), items[1].Likes)
	assert.False(t, items[1].Liked)

	require.NoError(t, v.ToggleLike(ctx, older.ID))
	it := v.Items()[1]
	assert.True(t, it.Liked)
	assert.Equal(t, int64(2), it.Likes)

	require.NoError(t, v.ToggleLike(ctx, older.ID))
	it = v.Items()[1]
	assert.False(t, it.Liked)
	assert.Equal(t, int64(1), it.Likes)

	assert.ErrorIs(t, v.ToggleLike(ctx, 12345), domain.ErrNotFound)

	// A reload picks the liked state up from the server.
	require.NoError(t, v.ToggleLike(ctx, newer.ID))
	require.NoError(t, v.Load(ctx))
	assert.True(t, v.Items()[0].Liked)
}

func TestFeedCreatePostAndSuggestions(t *testing.T) {
	w := newWorld(t)
	w.addUser(domain.User{Username: "alice"})
	w.addUser(domain.User{Username: "bob"})
	w.addUser(domain.User{Username: "carol"})
	alice := w.signIn("alice")
	ctx := context.Background()

	v := view.NewFeed(alice.deps)
	t.Cleanup(v.Close)
	require.NoError(t, v.Load(ctx))
	assert.Empty(t, v.Items())

	post, err := v.CreatePost(ctx, api.CreatePostRequest{
		Description: "hello",
		File:        gateway.File{Name: "hello.jpg", ContentType: "image/jpeg", Content: strings.NewReader("jpg")},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", post.Username)
	assert.Equal(t, "IMAGE", post.ContentType)
	require.Len(t, v.Items(), 1)
	assert.Equal(t, post.ID, v.Items()[0].ID)

	suggested, err := v.SuggestedFriends(ctx)
	require.NoError(t, err)
	var names []string
	for _, u := range suggested {
		names = append(names, u.Username)
	}
	assert.ElementsMatch(t, []string{"bob", "carol"}, names)

	require.NoError(t, v.AddFriend(ctx, "bob"))
	err = v.AddFriend(ctx, "bob")
	require.Error(t, err)
	assert.EqualError(t, v.Err(), "Friend request already exists")
}

func TestCommentsFollowTheirPost(t *testing.T) {
	w := newWorld(t)
	w.addUser(domain.User{Username: "alice"})
	w.addUser(domain.User{Username: "bob"})
	alice := w.signIn("alice")
	mine := w.srv.AddPost("alice", "mine")
	other := w.srv.AddPost("alice", "other")
	ctx := context.Background()

	v := view.NewComments(alice.deps, mine)
	t.Cleanup(v.Close)
	require.NoError(t, v.Load(ctx))
	assert.Empty(t, v.Comments())

	topic := ws.CommentTopic("alice")
	w.waitSubscribed(topic, 1)

	_, ok := w.srv.AddComment(other.ID, "bob", "wrong post")
	require.True(t, ok)
	w.broker.Publish(topic, "bob", []byte(`{"commentId":99,"text":"no post id","senderUsername":"bob"}`))
	c, ok := w.srv.AddComment(mine.ID, "bob", "nice")
	require.True(t, ok)

	require.Eventually(t, func() bool { return len(v.Comments()) == 2 }, waitFor, tick)
	got := v.Comments()
	assert.Equal(t, int64(99), got[0].ID)
	assert.Equal(t, c.ID, got[1].ID)
	assert.Equal(t, "bob", got[1].Username)

	require.NoError(t, v.Add(ctx, "  thanks  "))
	texts := []string{}
	for _, c := range v.Comments() {
		texts = append(texts, c.Text)
	}
	// The thread is reloaded from the server, which never saw comment 99.
	assert.Equal(t, []string{"nice", "thanks"}, texts)
	assert.ErrorIs(t, v.Add(ctx, "   "), domain.ErrInvalidInput)

	require.NoError(t, v.Delete(ctx, c.ID))
	require.Len(t, v.Comments(), 1)
	assert.Equal(t, "thanks", v.Comments()[0].Text)
}

func TestCommentsWithoutPostIDOnSomeoneElsesPost(t *testing.T) {
	w := newWorld(t)
	w.addUser(domain.User{Username: "alice"})
	w.addUser(domain.User{Username: "bob"})
	alice := w.signIn("alice")
	theirs := w.srv.AddPost("bob", "theirs")

	v := view.NewComments(alice.deps, theirs)
	t.Cleanup(v.Close)
	require.NoError(t, v.Load(context.Background()))

	topic := ws.CommentTopic("alice")
	w.waitSubscribed(topic, 1)
	w.broker.Publish(topic, "carol", []byte(`{"commentId":5,"text":"unscoped","senderUsername":"carol"}`))
	w.broker.Publish(topic, "carol", []byte(`{"commentId":6,"postId":`+itoa(theirs.ID)+`,"text":"scoped","senderUsername":"carol"}`))

	require.Eventually(t, func() bool { return len(v.Comments()) == 1 }, waitFor, tick)
	assert.Equal(t, int64(6), v.Comments()[0].ID)
}
