package api

import (
	"context"
	"net/http"

	"ping_client/internal/domain"
	"ping_client/internal/gateway"
)

type FriendshipList []domain.FriendshipRequest

func (l FriendshipList) Validate() error {
	return requireIDs("friendship", len(l), func(i int) int64 { return l[i].ID })
}

// FriendshipReply is returned by send and respond; Message is set on
// failures the server reports with a 2xx status.
type FriendshipReply struct {
	domain.FriendshipRequest
	Message string `json:"message,omitempty"`
}

func (c *Client) SendFriendRequest(ctx context.Context, sender, receiver string) (FriendshipReply, error) {
	return call[FriendshipReply](ctx, c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/friends/send",
		Query:  query("sender", sender, "receiver", receiver),
	})
}

func (c *Client) PendingRequests(ctx context.Context, username string) (FriendshipList, error) {
	return call[FriendshipList](ctx, c, gateway.Request{Method: http.MethodGet, Path: "/api/friends/" + seg(username) + "/pending"})
}

func (c *Client) AcceptedFriends(ctx context.Context, username string) (FriendshipList, error) {
	return call[FriendshipList](ctx, c, gateway.Request{Method: http.MethodGet, Path: "/api/friends/" + seg(username) + "/accept"})
}

func (c *Client) SuggestedFriends(ctx context.Context, username string) (UserList, error) {
	return call[UserList](ctx, c, gateway.Request{Method: http.MethodGet, Path: "/api/friends/" + seg(username) + "/suggested"})
}

func (c *Client) RespondFriendRequest(ctx context.Context, friendshipID int64, resp domain.FriendshipResponse) (FriendshipReply, error) {
	return call[FriendshipReply](ctx, c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/friends/response/" + id(friendshipID),
		Query:  query("type", string(resp)),
	})
}

func (c *Client) DeleteFriendship(ctx context.Context, friendshipID int64) error {
	return exec(ctx, c, gateway.Request{Method: http.MethodDelete, Path: "/api/friends/" + id(friendshipID)})
}
