package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ping_client/internal/api"
	"ping_client/internal/domain"
)

func TestDecodeFriendshipPush(t *testing.T) {
	f, err := api.DecodeFriendshipPush([]byte(`{"idFriendship":7,"senderName":"bob","receiverName":"alice"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.FriendshipRequest{ID: 7, SenderUsername: "bob", ReceiverUsername: "alice"}, f)

	_, err = api.DecodeFriendshipPush([]byte(`{"senderName":"bob"}`))
	assert.ErrorIs(t, err, api.ErrMalformedPush)
	_, err = api.DecodeFriendshipPush([]byte(`not json`))
	assert.ErrorIs(t, err, api.ErrMalformedPush)
}

func TestDecodeNotificationPush(t *testing.T) {
	n, err := api.DecodeNotificationPush([]byte(`{"username":"bob","text":"bob liked your post","notificationId":3,"isRead":false,"type":"LIKE"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Notification{ID: 3, Username: "bob", Text: "bob liked your post", Type: "LIKE"}, n)
}

func TestDecodeChatPush(t *testing.T) {
	m, err := api.DecodeChatPush([]byte(`{"messageId":11,"conversationId":4,"username":"bob","pictureProfile":"uploads/b.png","text":"hey"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(11), m.ID)
	assert.Equal(t, int64(4), m.ConversationID)
	assert.Equal(t, "bob", m.Sender.Username)
	assert.Equal(t, "uploads/b.png", m.Sender.ProfilePicture)
}

func TestDecodeCommentPushAcceptsBothShapes(t *testing.T) {
	a, err := api.DecodeCommentPush([]byte(`{"id":5,"text":"nice","username":"bob","profilePicture":"p"}`))
	require.NoError(t, err)
	b, err := api.DecodeCommentPush([]byte(`{"commentId":5,"text":"nice","senderUsername":"bob","senderProfilePicture":"p","receiverUsername":"alice"}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Zero(t, a.PostID)

	_, err = api.DecodeCommentPush([]byte(`{"text":"orphan"}`))
	assert.ErrorIs(t, err, api.ErrMalformedPush)
}

func TestDecodeProfilePushes(t *testing.T) {
	pic, err := api.DecodePicturePush([]byte(`{"id":1,"username":"alice","profilePicture":"uploads/new.png"}`))
	require.NoError(t, err)
	assert.Equal(t, "uploads/new.png", pic)

	info, err := api.DecodeProfileInfoPush([]byte(`{"firstName":"Ana","lastName":"Pop","phone":"0700","bio":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, api.ProfileInfo{FirstName: "Ana", LastName: "Pop", Phone: "0700", Bio: "hi"}, info)
}
