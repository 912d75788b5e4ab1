package api

import (
	"context"
	"encoding/json"
	"net/http"

	"ping_client/internal/domain"
	"ping_client/internal/gateway"
)

// wireNotification accepts both spellings of the read flag: REST bodies
// use "read", push payloads use "isRead".
type wireNotification struct {
	NotificationID int64  `json:"notificationId"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
	Text           string `json:"text"`
	Read           *bool  `json:"read"`
	IsRead         *bool  `json:"isRead"`
	Type           string `json:"type"`
}

func (w wireNotification) toDomain() domain.Notification {
	n := domain.Notification{
		ID:             w.NotificationID,
		Username:       w.Username,
		ProfilePicture: w.ProfilePicture,
		Text:           w.Text,
		Type:           w.Type,
	}
	switch {
	case w.Read != nil:
		n.Read = *w.Read
	case w.IsRead != nil:
		n.Read = *w.IsRead
	}
	return n
}

type NotificationList []domain.Notification

func (l *NotificationList) UnmarshalJSON(b []byte) error {
	var wire []wireNotification
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	out := make(NotificationList, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toDomain())
	}
	*l = out
	return nil
}

func (l NotificationList) Validate() error {
	return requireIDs("notification", len(l), func(i int) int64 { return l[i].ID })
}

func (c *Client) UnreadNotifications(ctx context.Context, username string) (NotificationList, error) {
	return call[NotificationList](ctx, c, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/notification/unread",
		Query:  query("username", username),
	})
}

func (c *Client) AllNotifications(ctx context.Context, username string) (NotificationList, error) {
	return call[NotificationList](ctx, c, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/notification/all",
		Query:  query("username", username),
	})
}

func (c *Client) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	return exec(ctx, c, gateway.Request{
		Method: http.MethodPatch,
		Path:   "/api/notification/mark-as-read",
		Query:  query("notificationId", id(notificationID)),
	})
}

func (c *Client) DeleteNotification(ctx context.Context, notificationID int64) error {
	return exec(ctx, c, gateway.Request{Method: http.MethodDelete, Path: "/api/notification/" + id(notificationID)})
}
