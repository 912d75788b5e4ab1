package view

import (
	"context"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/ws"
)

// FriendRequestsView is the list of requests waiting for the session
// user's answer.
type FriendRequestsView struct {
	*base
	pending []domain.FriendshipRequest
}

func NewFriendRequests(deps Deps) *FriendRequestsView {
	return &FriendRequestsView{base: newBase(deps, "friend-requests")}
}

func friendshipID(f domain.FriendshipRequest) int64 { return f.ID }

func (v *FriendRequestsView) Load(ctx context.Context) error {
	me, err := v.me()
	if err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	v.beginLocked()
	v.pending = nil
	v.mu.Unlock()

	v.subscribe("friends", ws.FriendsTopic(me.Username), func(ev ws.Event) { v.onPush(ev, me.Username) })

	ctx, done := v.scope(ctx)
	defer done()
	list, err := v.deps.API.PendingRequests(ctx, me.Username)
	if err != nil {
		return v.fail(err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.pending = merge(list, v.pending, friendshipID)
	v.state = Ready
	return nil
}

func (v *FriendRequestsView) onPush(ev ws.Event, self string) {
	if v.ownEcho(ev, self) {
		return
	}
	req, err := api.DecodeFriendshipPush(ev.Body)
	if err != nil {
		v.dropPush(ev, err)
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return
	}
	v.pending = upsert(v.pending, req, friendshipID)
}

func (v *FriendRequestsView) Pending() []domain.FriendshipRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.pending)
}

// Respond accepts or rejects a request. The request leaves the list once
// the server confirms.
func (v *FriendRequestsView) Respond(ctx context.Context, id int64, resp domain.FriendshipResponse) error {
	ctx, done := v.scope(ctx)
	defer done()
	if _, err := v.deps.API.RespondFriendRequest(ctx, id, resp); err != nil {
		return v.fail(err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.err = nil
	v.pending = removeID(v.pending, id, friendshipID)
	return nil
}

// Send asks receiver to become a friend of the session user.
func (v *FriendRequestsView) Send(ctx context.Context, receiver string) (api.FriendshipReply, error) {
	me, err := v.me()
	if err != nil {
		return api.FriendshipReply{}, v.fail(err)
	}
	ctx, done := v.scope(ctx)
	defer done()
	reply, err := v.deps.API.SendFriendRequest(ctx, me.Username, receiver)
	if err != nil {
		return api.FriendshipReply{}, v.fail(err)
	}
	return reply, nil
}
