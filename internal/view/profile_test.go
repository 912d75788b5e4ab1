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

func TestProfileKeepsSessionInSync(t *testing.T) {
	w := newWorld(t)
	w.addUser(domain.User{Username: "alice", Phone: "555-0101"})
	w.addUser(domain.User{Username: "bob"})
	alice := w.signIn("alice")
	phone := w.signIn("alice")
	bob := w.signIn("bob")
	befriend(t, bob, alice, "alice")
	w.srv.AddPost("alice", "first light")
	ctx := context.Background()

	v := view.NewProfile(alice.deps)
	t.Cleanup(v.Close)
	require.NoError(t, v.Load(ctx))
	require.Len(t, v.Posts(), 1)
	assert.Equal(t, "first light", v.Posts()[0].Description)
	require.Len(t, v.Friends(), 1)
	assert.Equal(t, "bob", v.Friends()[0].Counterpart("alice"))

	require.NoError(t, v.UpdateInfo(ctx, api.UpdateProfileRequest{FirstName: "  Alice ", Bio: "hello "}))
	me, _ := alice.session.User()
	assert.Equal(t, "Alice", me.FirstName)
	assert.Equal(t, "hello", me.Bio)
	assert.Equal(t, "555-0101", me.Phone)

	// Changes made on another device arrive as pushes and are applied even
	// though they come from the same user.
	w.waitSubscribed(ws.InfoTopic("alice"), 1)
	_, err := phone.api.UpdateProfile(ctx, "alice", api.UpdateProfileRequest{Bio: "from my phone"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		u, _ := alice.session.User()
		return u.Bio == "from my phone"
	}, waitFor, tick)

	w.waitSubscribed(ws.PictureTopic("alice"), 1)
	_, err = phone.api.UploadPicture(ctx, "alice", gateway.File{Name: "me.png", ContentType: "image/png", Content: strings.NewReader("png")})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		u, _ := alice.session.User()
		return strings.HasSuffix(u.ProfilePicture, ".png")
	}, waitFor, tick)

	require.NoError(t, v.DeletePicture(ctx))
	me, _ = alice.session.User()
	assert.Empty(t, me.ProfilePicture)
}

func TestProfilePostsAndFriends(t *testing.T) {
	w := newWorld(t)
	w.addUser(domain.User{Username: "alice"})
	w.addUser(domain.User{Username: "bob"})
	alice := w.signIn("alice")
	bob := w.signIn("bob")
	befriend(t, alice, bob, "bob")
	keep := w.srv.AddPost("alice", "keep")
	drop := w.srv.AddPost("alice", "drop")
	ctx := context.Background()

	v := view.NewProfile(alice.deps)
	t.Cleanup(v.Close)
	require.NoError(t, v.Load(ctx))
	require.Len(t, v.Posts(), 2)

	require.NoError(t, v.DeletePost(ctx, drop.ID))
	require.Len(t, v.Posts(), 1)
	assert.Equal(t, keep.ID, v.Posts()[0].ID)
	assert.ErrorIs(t, v.DeletePost(ctx, drop.ID), domain.ErrNotFound)

	require.NoError(t, v.RemoveFriend(ctx, v.Friends()[0].ID))
	assert.Empty(t, v.Friends())
	friends, err := bob.api.AcceptedFriends(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestProfileUploadRejectsUnsupportedFile(t *testing.T) {
	w := newWorld(t)
	w.addUser(domain.User{Username: "alice"})
	alice := w.signIn("alice")

	v := view.NewProfile(alice.deps)
	t.Cleanup(v.Close)
	err := v.UploadPicture(context.Background(), gateway.File{Name: "notes.txt", ContentType: "text/plain", Content: strings.NewReader("x")})
	require.Error(t, err)
	assert.EqualError(t, v.Err(), "Unsupported file type")
}
