package domain

import "strings"

// User is a Ping account as the API returns it in lists and member sets.
type User struct {
	ID             int64    `json:"id"`
	Username       string   `json:"username"`
	FirstName      string   `json:"firstName,omitempty"`
	LastName       string   `json:"lastName,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	ProfilePicture string   `json:"profilePicture,omitempty"`
	Roles          []string `json:"roles,omitempty"`
}

// SessionUser is the authenticated user resolved from the stored credential.
type SessionUser struct {
	ID             int64
	Username       string
	FirstName      string
	LastName       string
	Phone          string
	Bio            string
	ProfilePicture string
	Roles          []string
}

func (u SessionUser) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether any role names the admin authority.
func (u SessionUser) IsAdmin() bool {
	for _, r := range u.Roles {
		if strings.Contains(strings.ToUpper(r), "ADMIN") {
			return true
		}
	}
	return false
}

type ConversationType string

const (
	ConversationPrivate ConversationType = "PRIVATE"
	ConversationGroup   ConversationType = "GROUP"
)

// Conversation is a private or group chat with its ordered member set.
type Conversation struct {
	ID      int64            `json:"id"`
	Name    string           `json:"name,omitempty"`
	Type    ConversationType `json:"conversationType"`
	Members []User           `json:"members"`
}

// DisplayName is the conversation name, or the other members' usernames.
func (c Conversation) DisplayName(self string) string {
	if c.Name != "" {
		return c.Name
	}
	var names []string
	for _, m := range c.Members {
		if m.Username != self {
			names = append(names, m.Username)
		}
	}
	return strings.Join(names, ", ")
}

// Initials is the avatar fallback text.
func (c Conversation) Initials(self string) string {
	switch {
	case c.Name != "":
		return upperPrefix(c.Name, 2)
	case c.Type == ConversationPrivate:
		if other, ok := c.Other(self); ok && other.Username != "" {
			return upperPrefix(other.Username, 2)
		}
		return "U"
	case c.Type == ConversationGroup:
		return "G"
	}
	return "C"
}

// Avatar returns the stored picture path that represents the conversation.
func (c Conversation) Avatar(self string) string {
	if c.Name != "" {
		return ""
	}
	switch c.Type {
	case ConversationPrivate:
		if other, ok := c.Other(self); ok {
			return other.ProfilePicture
		}
	case ConversationGroup:
		if len(c.Members) > 0 {
			return c.Members[0].ProfilePicture
		}
	}
	return ""
}

// Other returns the first member that is not self.
func (c Conversation) Other(self string) (User, bool) {
	for _, m := range c.Members {
		if m.Username != self {
			return m, true
		}
	}
	return User{}, false
}

func upperPrefix(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return strings.ToUpper(string(r))
}

// Message is one entry of a conversation's detail list.
type Message struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversationId"`
	Sender         User   `json:"sender"`
	Text           string `json:"text"`
}

// FriendshipRequest is a pending, accepted or rejected friendship.
type FriendshipRequest struct {
	ID                   int64  `json:"id"`
	SenderUsername       string `json:"senderUsername"`
	ReceiverUsername     string `json:"receiverUsername"`
	SenderProfileImage   string `json:"senderProfileImage,omitempty"`
	ReceiverProfileImage string `json:"receiverProfileImage,omitempty"`
}

// Counterpart returns the username on the other side of the friendship.
func (f FriendshipRequest) Counterpart(self string) string {
	if f.SenderUsername == self {
		return f.ReceiverUsername
	}
	return f.SenderUsername
}

type FriendshipResponse string

const (
	FriendshipAccepted FriendshipResponse = "Accepted"
	FriendshipRejected FriendshipResponse = "Rejected"
)

type Notification struct {
	ID             int64  `json:"notificationId"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Text           string `json:"text"`
	Read           bool   `json:"read"`
	Type           string `json:"type,omitempty"`
}

// Post is a user's own post as listed on the profile page.
type Post struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	MediaURL    string `json:"mediaUrl"`
	ContentType string `json:"contentType"`
	User        *User  `json:"user,omitempty"`
	Likes       int64  `json:"likes,omitempty"`
}

// FeedPost is a post from the feed, flattened with its author.
type FeedPost struct {
	ID             int64  `json:"id"`
	MediaURL       string `json:"mediaUrl"`
	ContentType    string `json:"contentType"`
	Description    string `json:"description"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Username       string `json:"username"`
}

type Comment struct {
	ID             int64  `json:"id"`
	Text           string `json:"text"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

type Like struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"userId"`
	PostID int64 `json:"postId"`
}
