package view

import (
	"context"
	"strings"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/ws"
)

// CommentsView is the comment thread of one post.
type CommentsView struct {
	*base
	post     domain.FeedPost
	comments []domain.Comment
}

func NewComments(deps Deps, post domain.FeedPost) *CommentsView {
	return &CommentsView{base: newBase(deps, "comments"), post: post}
}

func commentID(c domain.Comment) int64 { return c.ID }

func (v *CommentsView) Load(ctx context.Context) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	v.beginLocked()
	v.mu.Unlock()

	v.subscribe("comment", ws.CommentTopic(me.Username), func(ev ws.Event) { v.onPush(ev, me.Username) })
	if err := v.refresh(ctx); err != nil {
		return err
	}
	v.mu.Lock()
	v.state = Ready
	v.mu.Unlock()
	return nil
}

func (v *CommentsView) refresh(ctx context.Context) error {
	ctx, done := v.scope(ctx)
	defer done()
	list, err := v.deps.API.Comments(ctx, v.post.ID)
	if err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.err = nil
	v.comments = list
	return nil
}

// onPush merges comments left on the session user's posts. A push naming
// another post is ignored; one without a post id is only taken when this
// post belongs to the session user.
func (v *CommentsView) onPush(ev ws.Event, self string) {
	if v.ownEcho(ev, self) {
		return
	}
	p, err := api.DecodeCommentPush(ev.Body)
	if err != nil {
		v.dropPush(ev, err)
		return
	}
	if p.PostID != 0 && p.PostID != v.post.ID {
		return
	}
	if p.PostID == 0 && v.post.Username != self {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed() {
		v.comments = upsert(v.comments, p.Comment, commentID)
	}
}

func (v *CommentsView) Comments() []domain.Comment {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.comments)
}

// Add posts a comment and reloads the thread.
func (v *CommentsView) Add(ctx context.Context, text string) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrInvalidInput
	}
	ctx, done := v.scope(ctx)
	defer done()
	reply, err := v.deps.API.AddComment(ctx, v.post.ID, me.ID, text)
	if err != nil {
		return v.fail(err)
	}
	if reply.ID == 0 {
		return nil
	}
	return v.refresh(ctx)
}

func (v *CommentsView) Delete(ctx context.Context, id int64) error {
	ctx, done := v.scope(ctx)
	defer done()
	if err := v.deps.API.DeleteComment(ctx, id); err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.err = nil
	v.comments = removeID(v.comments, id, commentID)
	return nil
}
