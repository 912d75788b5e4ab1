package ws

import (
	"net/url"
	"strconv"
	"strings"
)

// OriginHeader names the user whose action caused a push. Views drop
// events that originate from the session user.
const OriginHeader = "origin-actor"

const topicPrefix = "/topic/"

func ConversationTopic(conversationID int64) string {
	return topicPrefix + "conversations/" + strconv.FormatInt(conversationID, 10)
}

func FriendsTopic(username string) string {
	return userTopic("friends", username)
}

func NotificationsTopic(username string) string {
	return userTopic("notifications", username)
}

func PictureTopic(username string) string {
	return userTopic("update-picture", username)
}

func InfoTopic(username string) string {
	return userTopic("update-info", username)
}

func CommentTopic(username string) string {
	return userTopic("comment", username)
}

func userTopic(family, username string) string {
	return topicPrefix + family + "/" + url.PathEscape(username)
}

// Family returns the topic kind, e.g. "friends" for /topic/friends/alice.
func Family(topic string) string {
	rest := strings.TrimPrefix(topic, topicPrefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}
