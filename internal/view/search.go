package view

import (
	"context"
	"errors"
	"strings"

	"ping_client/internal/domain"
)

// SearchView finds users by keyword and sends friend requests to them.
type SearchView struct {
	*base
	keyword string
	results []domain.User
	sent    map[string]bool
}

func NewSearch(deps Deps) *SearchView {
	return &SearchView{base: newBase(deps, "search"), sent: make(map[string]bool)}
}

// Search replaces the results. An empty keyword clears them without a
// call. Replies for a keyword that has since changed are discarded.
func (v *SearchView) Search(ctx context.Context, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	v.mu.Lock()
	v.keyword = keyword
	if keyword == "" {
		v.results = nil
		v.state = Idle
		v.mu.Unlock()
		return nil
	}
	v.beginLocked()
	v.mu.Unlock()

	ctx, done := v.scope(ctx)
	defer done()
	list, err := v.deps.API.SearchUsers(ctx, keyword)
	if err != nil {
		return v.fail(err)
	}

	self := ""
	if me, err := v.me(); err == nil {
		self = me.Username
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() || v.keyword != keyword {
		return domain.ErrClosed
	}
	v.results = v.results[:0]
	for _, u := range list {
		if u.Username != self {
			v.results = append(v.results, u)
		}
	}
	v.state = Ready
	return nil
}

func (v *SearchView) Results() []domain.User {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.results)
}

// AddFriend sends a friend request to username.
func (v *SearchView) AddFriend(ctx context.Context, username string) error {
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
	v.mu.Lock()
	v.sent[username] = true
	v.err = nil
	v.mu.Unlock()
	return nil
}

// Requested reports whether a request went out to username from this view.
func (v *SearchView) Requested(username string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sent[username]
}
