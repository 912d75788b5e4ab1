package view

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"ping_client/internal/api"
	"ping_client/internal/domain"
)

// likeFetchLimit bounds the like-count calls in flight for one feed load.
const likeFetchLimit = 8

// FeedItem is a feed post with its like state.
type FeedItem struct {
	domain.FeedPost
	Likes int64
	Liked bool
}

type FeedView struct {
	*base
	items []FeedItem
}

func NewFeed(deps Deps) *FeedView {
	return &FeedView{base: newBase(deps, "feed")}
}

func feedItemID(it FeedItem) int64 { return it.ID }

// Load fetches the feed, then every post's like count concurrently and the
// posts the session user liked. A failed count leaves that post at zero
// and is reported through Err.
func (v *FeedView) Load(ctx context.Context) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	v.beginLocked()
	v.mu.Unlock()

	ctx, done := v.scope(ctx)
	defer done()
	posts, err := v.deps.API.Feed(ctx, me.Username)
	if err != nil {
		return v.fail(err)
	}

	items := make([]FeedItem, len(posts))
	for i, p := range posts {
		items[i] = FeedItem{FeedPost: p}
	}

	var (
		firstErr error
		errOnce  sync.Once
	)
	report := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(likeFetchLimit)
	for i := range items {
		g.Go(func() error {
			n, err := v.deps.API.LikeCount(gctx, items[i].ID)
			if err != nil {
				report(err)
				return nil
			}
			items[i].Likes = n
			return nil
		})
	}
	var liked api.LikeList
	g.Go(func() error {
		var err error
		liked, err = v.deps.API.LikedByUser(gctx, me.ID)
		if err != nil {
			report(err)
		}
		return nil
	})
	_ = g.Wait()

	likedPosts := make(map[int64]bool, len(liked))
	for _, l := range liked {
		likedPosts[l.PostID] = true
	}
	for i := range items {
		items[i].Liked = likedPosts[items[i].ID]
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.items = items
	v.state = Ready
	v.err = firstErr
	return nil
}

func (v *FeedView) Items() []FeedItem {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.items)
}

// ToggleLike likes or unlikes a post, then refreshes its count.
func (v *FeedView) ToggleLike(ctx context.Context, id int64) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	it, ok := find(v.items, id, feedItemID)
	v.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	ctx, done := v.scope(ctx)
	defer done()
	if it.Liked {
		_, err = v.deps.API.Dislike(ctx, id, me.ID)
	} else {
		_, err = v.deps.API.Like(ctx, id, me.ID)
	}
	if err != nil {
		return v.fail(err)
	}
	v.setItem(id, func(it *FeedItem) { it.Liked = !it.Liked })

	n, err := v.deps.API.LikeCount(ctx, id)
	if err != nil {
		return v.fail(err)
	}
	v.setItem(id, func(it *FeedItem) { it.Likes = n })
	return nil
}

func (v *FeedView) setItem(id int64, fn func(it *FeedItem)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return
	}
	for i := range v.items {
		if v.items[i].ID == id {
			fn(&v.items[i])
		}
	}
	v.err = nil
}

// CreatePost publishes a post and puts it at the top of the feed.
func (v *FeedView) CreatePost(ctx context.Context, in api.CreatePostRequest) (domain.FeedPost, error) {
	me, err := v.me()
	if err != nil {
		return domain.FeedPost{}, v.fail(err)
	}
	ctx, done := v.scope(ctx)
	defer done()
	created, err := v.deps.API.CreatePost(ctx, me.Username, in)
	if err != nil {
		return domain.FeedPost{}, v.fail(err)
	}
	post := created.FeedPost
	if post.Username == "" {
		post.Username = me.Username
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return post, domain.ErrClosed
	}
	v.err = nil
	v.items = append([]FeedItem{{FeedPost: post}}, removeID(v.items, post.ID, feedItemID)...)
	return post, nil
}

func (v *FeedView) SuggestedFriends(ctx context.Context) ([]domain.User, error) {
	me, err := v.me()
	if err != nil {
		return nil, v.fail(err)
	}
	ctx, done := v.scope(ctx)
	defer done()
	list, err := v.deps.API.SuggestedFriends(ctx, me.Username)
	if err != nil {
		return nil, v.fail(err)
	}
	return list, nil
}

// AddFriend sends a friend request from the suggestions. A reply without
// an id carries the server's reason in its message.
func (v *FeedView) AddFriend(ctx context.Context, username string) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	ctx, done := v.scope(ctx)
	defer done()
	reply, err := v.deps.API.SendFriendRequest(ctx, me.Username, username)
	if err != nil {
		return v.fail(err)
	}
	if reply.ID == 0 && reply.Message != "" {
		return v.fail(errors.New(reply.Message))
	}
	return nil
}
