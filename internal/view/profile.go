package view

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/gateway"
	"ping_client/internal/ws"
)

var errProfileNotUpdated = errors.New("Failed to update profile")

// ProfileView shows the session user's own posts and friends and keeps
// the session user in sync with profile changes pushed by the server.
type ProfileView struct {
	*base
	posts   []domain.Post
	friends []domain.FriendshipRequest
}

func NewProfile(deps Deps) *ProfileView {
	return &ProfileView{base: newBase(deps, "profile")}
}

func postID(p domain.Post) int64 { return p.ID }

func (v *ProfileView) Load(ctx context.Context) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	v.beginLocked()
	v.mu.Unlock()

	v.subscribe("picture", ws.PictureTopic(me.Username), v.onPicture)
	v.subscribe("info", ws.InfoTopic(me.Username), v.onInfo)

	ctx, done := v.scope(ctx)
	defer done()

	var (
		posts   api.PostList
		friends api.FriendshipList
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		posts, err = v.deps.API.UserPosts(gctx, me.Username)
		return err
	})
	g.Go(func() error {
		var err error
		friends, err = v.deps.API.AcceptedFriends(gctx, me.Username)
		return err
	})
	if err := g.Wait(); err != nil {
		return v.fail(err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.posts = posts
	v.friends = friends
	v.state = Ready
	return nil
}

// Profile pushes replace state wholesale, so they are applied even when
// they echo the session user's own change.
func (v *ProfileView) onPicture(ev ws.Event) {
	pic, err := api.DecodePicturePush(ev.Body)
	if err != nil {
		v.dropPush(ev, err)
		return
	}
	if v.closed() {
		return
	}
	v.deps.Session.Update(func(u *domain.SessionUser) { u.ProfilePicture = pic })
}

func (v *ProfileView) onInfo(ev ws.Event) {
	info, err := api.DecodeProfileInfoPush(ev.Body)
	if err != nil {
		v.dropPush(ev, err)
		return
	}
	if v.closed() {
		return
	}
	v.deps.Session.Update(func(u *domain.SessionUser) {
		u.FirstName, u.LastName, u.Phone, u.Bio = info.FirstName, info.LastName, info.Phone, info.Bio
	})
}

func (v *ProfileView) Posts() []domain.Post {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.posts)
}

func (v *ProfileView) Friends() []domain.FriendshipRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.friends)
}

// UpdateInfo saves the editable profile fields, trimmed.
func (v *ProfileView) UpdateInfo(ctx context.Context, in api.UpdateProfileRequest) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	in = api.UpdateProfileRequest{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     strings.TrimSpace(in.Phone),
		Bio:       strings.TrimSpace(in.Bio),
	}

	ctx, done := v.scope(ctx)
	defer done()
	u, err := v.deps.API.UpdateProfile(ctx, me.Username, in)
	if err != nil {
		return v.fail(err)
	}
	if u.ID == 0 || u.Username == "" {
		return v.fail(errProfileNotUpdated)
	}
	return v.apply(u)
}

func (v *ProfileView) UploadPicture(ctx context.Context, file gateway.File) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	ctx, done := v.scope(ctx)
	defer done()
	u, err := v.deps.API.UploadPicture(ctx, me.Username, file)
	if err != nil {
		return v.fail(err)
	}
	return v.apply(u)
}

func (v *ProfileView) DeletePicture(ctx context.Context) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	ctx, done := v.scope(ctx)
	defer done()
	u, err := v.deps.API.DeletePicture(ctx, me.Username)
	if err != nil {
		return v.fail(err)
	}
	return v.apply(u)
}

// apply copies a confirmed profile into the session user.
func (v *ProfileView) apply(u domain.User) error {
	if v.closed() {
		return domain.ErrClosed
	}
	v.deps.Session.Update(func(s *domain.SessionUser) {
		s.FirstName, s.LastName, s.Phone, s.Bio = u.FirstName, u.LastName, u.Phone, u.Bio
		s.ProfilePicture = u.ProfilePicture
	})
	v.mu.Lock()
	v.err = nil
	v.mu.Unlock()
	return nil
}

// DeletePost removes one of the session user's posts with its media.
func (v *ProfileView) DeletePost(ctx context.Context, id int64) error {
	v.mu.Lock()
	p, ok := find(v.posts, id, postID)
	v.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	ctx, done := v.scope(ctx)
	defer done()
	if err := v.deps.API.DeletePost(ctx, id, p.MediaURL); err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.err = nil
	v.posts = removeID(v.posts, id, postID)
	return nil
}

func (v *ProfileView) RemoveFriend(ctx context.Context, friendship int64) error {
	ctx, done := v.scope(ctx)
	defer done()
	if err := v.deps.API.DeleteFriendship(ctx, friendship); err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.err = nil
	v.friends = removeID(v.friends, friendship, friendshipID)
	return nil
}
