package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"ping_client/internal/domain"
)

// Push payloads use their own field names; these decoders map them onto
// the entities the REST endpoints return.

var ErrMalformedPush = errors.New("malformed push payload")

type friendshipPush struct {
	IDFriendship           int64  `json:"idFriendship"`
	SenderName             string `json:"senderName"`
	ReceiverName           string `json:"receiverName"`
	SenderProfilePicture   string `json:"senderProfilePicture"`
	ReceiverProfilePicture string `json:"receiverProfilePicture"`
}

func DecodeFriendshipPush(body []byte) (domain.FriendshipRequest, error) {
	var p friendshipPush
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.FriendshipRequest{}, fmt.Errorf("%w: %v", ErrMalformedPush, err)
	}
	if p.IDFriendship == 0 {
		return domain.FriendshipRequest{}, fmt.Errorf("%w: missing idFriendship", ErrMalformedPush)
	}
	return domain.FriendshipRequest{
		ID:                   p.IDFriendship,
		SenderUsername:       p.SenderName,
		ReceiverUsername:     p.ReceiverName,
		SenderProfileImage:   p.SenderProfilePicture,
		ReceiverProfileImage: p.ReceiverProfilePicture,
	}, nil
}

func DecodeNotificationPush(body []byte) (domain.Notification, error) {
	var w wireNotification
	if err := json.Unmarshal(body, &w); err != nil {
		return domain.Notification{}, fmt.Errorf("%w: %v", ErrMalformedPush, err)
	}
	if w.NotificationID == 0 {
		return domain.Notification{}, fmt.Errorf("%w: missing notificationId", ErrMalformedPush)
	}
	return w.toDomain(), nil
}

type chatPush struct {
	MessageID      int64  `json:"messageId"`
	ConversationID int64  `json:"conversationId"`
	Username       string `json:"username"`
	PictureProfile string `json:"pictureProfile"`
	Text           string `json:"text"`
}

func DecodeChatPush(body []byte) (domain.Message, error) {
	var p chatPush
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", ErrMalformedPush, err)
	}
	if p.MessageID == 0 {
		return domain.Message{}, fmt.Errorf("%w: missing messageId", ErrMalformedPush)
	}
	return domain.Message{
		ID:             p.MessageID,
		ConversationID: p.ConversationID,
		Sender:         domain.User{Username: p.Username, ProfilePicture: p.PictureProfile},
		Text:           p.Text,
	}, nil
}

type commentPush struct {
	ID                   int64  `json:"id"`
	CommentID            int64  `json:"commentId"`
	PostID               int64  `json:"postId"`
	Text                 string `json:"text"`
	Username             string `json:"username"`
	SenderUsername       string `json:"senderUsername"`
	ProfilePicture       string `json:"profilePicture"`
	SenderProfilePicture string `json:"senderProfilePicture"`
}

// CommentPush is a new comment on one of the user's posts. PostID is zero
// when the server did not say which post.
type CommentPush struct {
	Comment domain.Comment
	PostID  int64
}

func DecodeCommentPush(body []byte) (CommentPush, error) {
	var p commentPush
	if err := json.Unmarshal(body, &p); err != nil {
		return CommentPush{}, fmt.Errorf("%w: %v", ErrMalformedPush, err)
	}
	c := domain.Comment{
		ID:             firstID(p.ID, p.CommentID),
		Text:           p.Text,
		Username:       firstString(p.Username, p.SenderUsername),
		ProfilePicture: firstString(p.ProfilePicture, p.SenderProfilePicture),
	}
	if c.ID == 0 {
		return CommentPush{}, fmt.Errorf("%w: missing comment id", ErrMalformedPush)
	}
	return CommentPush{Comment: c, PostID: p.PostID}, nil
}

// ProfileInfo is the editable part of a profile as pushed on update-info.
type ProfileInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Bio       string `json:"bio"`
}

func DecodeProfileInfoPush(body []byte) (ProfileInfo, error) {
	var p ProfileInfo
	if err := json.Unmarshal(body, &p); err != nil {
		return ProfileInfo{}, fmt.Errorf("%w: %v", ErrMalformedPush, err)
	}
	return p, nil
}

// DecodePicturePush returns the new picture path; empty means removed.
func DecodePicturePush(body []byte) (string, error) {
	var p struct {
		ProfilePicture string `json:"profilePicture"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPush, err)
	}
	return p.ProfilePicture, nil
}

func firstID(ids ...int64) int64 {
	for _, v := range ids {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstString(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
