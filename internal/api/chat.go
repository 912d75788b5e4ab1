package api

import (
	"context"
	"net/http"

	"ping_client/internal/domain"
	"ping_client/internal/gateway"
)

type ConversationList []domain.Conversation

func (l ConversationList) Validate() error {
	return requireIDs("conversation", len(l), func(i int) int64 { return l[i].ID })
}

type MessageList []domain.Message

func (l MessageList) Validate() error {
	return requireIDs("message", len(l), func(i int) int64 { return l[i].ID })
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

type CreatedConversation struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name,omitempty"`
	NameGroup string        `json:"nameGroup,omitempty"`
	Members   []domain.User `json:"members"`
	Message   string        `json:"message,omitempty"`
}

func (c *Client) Conversations(ctx context.Context, username string) (ConversationList, error) {
	return call[ConversationList](ctx, c, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/chat/conversation/user",
		Query:  query("username", username),
	})
}

func (c *Client) ConversationDetails(ctx context.Context, conversationID int64) (MessageList, error) {
	return call[MessageList](ctx, c, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/chat/conversation/" + id(conversationID) + "/details",
	})
}

func (c *Client) SendMessage(ctx context.Context, conversationID int64, username, text string) (domain.Message, error) {
	return call[domain.Message](ctx, c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/chat/conversation/" + id(conversationID),
		Query:  query("username", username),
		Body:   SendMessageRequest{Text: text},
	})
}

func (c *Client) CreatePrivate(ctx context.Context, user1, user2, chatName string) (CreatedConversation, error) {
	return call[CreatedConversation](ctx, c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/chat/user1/" + seg(user1) + "/user2/" + seg(user2) + "/private/" + seg(chatName),
	})
}

func (c *Client) CreateGroup(ctx context.Context, name string, usernames []string) (CreatedConversation, error) {
	return call[CreatedConversation](ctx, c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/chat/group/" + seg(name),
		Body:   map[string][]string{"usernames": usernames},
	})
}

func (c *Client) DeleteConversation(ctx context.Context, conversationID int64) error {
	return exec(ctx, c, gateway.Request{Method: http.MethodDelete, Path: "/api/chat/conversation/" + id(conversationID)})
}
