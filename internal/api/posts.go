package api

import (
	"context"
	"net/http"

	"ping_client/internal/domain"
	"ping_client/internal/gateway"
)

type FeedList []domain.FeedPost

func (l FeedList) Validate() error {
	return requireIDs("post", len(l), func(i int) int64 { return l[i].ID })
}

type PostList []domain.Post

func (l PostList) Validate() error {
	return requireIDs("post", len(l), func(i int) int64 { return l[i].ID })
}

type CommentList []domain.Comment

func (l CommentList) Validate() error {
	return requireIDs("comment", len(l), func(i int) int64 { return l[i].ID })
}

type LikeList []domain.Like

// CreatePostRequest is a new image post. Content is read once.
type CreatePostRequest struct {
	Description string
	Type        string
	File        gateway.File
}

type CreatedPost struct {
	domain.FeedPost
	Message string `json:"message,omitempty"`
}

type CommentReply struct {
	domain.Comment
	Message string `json:"message,omitempty"`
}

type LikeReply struct {
	domain.Like
	Message string `json:"message,omitempty"`
}

func (c *Client) Feed(ctx context.Context, username string) (FeedList, error) {
	return call[FeedList](ctx, c, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/posts/feed",
		Query:  query("username", username),
	})
}

func (c *Client) UserPosts(ctx context.Context, username string) (PostList, error) {
	return call[PostList](ctx, c, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/posts/user",
		Query:  query("username", username),
	})
}

func (c *Client) CreatePost(ctx context.Context, username string, in CreatePostRequest) (CreatedPost, error) {
	typ := in.Type
	if typ == "" {
		typ = "IMAGE"
	}
	file := in.File
	file.Field = "file"
	return call[CreatedPost](ctx, c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/posts/" + seg(username),
		Multipart: &gateway.Multipart{
			Fields: map[string]string{"description": in.Description, "type": typ},
			Files:  []gateway.File{file},
		},
	})
}

func (c *Client) DeletePost(ctx context.Context, postID int64, mediaURL string) error {
	return exec(ctx, c, gateway.Request{
		Method: http.MethodDelete,
		Path:   "/api/posts/delete/" + id(postID),
		Body:   map[string]string{"mediaUrl": mediaURL},
	})
}

func (c *Client) Comments(ctx context.Context, postID int64) (CommentList, error) {
	return call[CommentList](ctx, c, gateway.Request{Method: http.MethodGet, Path: "/api/posts/" + id(postID) + "/comment"})
}

func (c *Client) AddComment(ctx context.Context, postID, userID int64, text string) (CommentReply, error) {
	return call[CommentReply](ctx, c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/posts/" + id(postID) + "/user/" + id(userID) + "/comment",
		Body:   map[string]string{"text": text},
	})
}

func (c *Client) DeleteComment(ctx context.Context, commentID int64) error {
	return exec(ctx, c, gateway.Request{Method: http.MethodDelete, Path: "/api/posts/" + id(commentID)})
}

func (c *Client) Like(ctx context.Context, postID, userID int64) (LikeReply, error) {
	return c.likes(ctx, postID, userID, "like")
}

func (c *Client) Dislike(ctx context.Context, postID, userID int64) (LikeReply, error) {
	return c.likes(ctx, postID, userID, "dislike")
}

func (c *Client) likes(ctx context.Context, postID, userID int64, action string) (LikeReply, error) {
	return call[LikeReply](ctx, c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/posts/" + id(postID) + "/user/" + id(userID) + "/" + action,
	})
}

func (c *Client) LikeCount(ctx context.Context, postID int64) (int64, error) {
	return call[int64](ctx, c, gateway.Request{Method: http.MethodGet, Path: "/api/posts/" + id(postID) + "/like"})
}

func (c *Client) LikedByUser(ctx context.Context, userID int64) (LikeList, error) {
	return call[LikeList](ctx, c, gateway.Request{Method: http.MethodGet, Path: "/api/posts/likes/user/" + id(userID)})
}
