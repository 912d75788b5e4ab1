package api

import (
	"context"
	"net/http"

	"ping_client/internal/domain"
	"ping_client/internal/gateway"
)

type UserList []domain.User

func (l UserList) Validate() error {
	return requireIDs("user", len(l), func(i int) int64 { return l[i].ID })
}

type UpdateProfileRequest struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

func (c *Client) SearchUsers(ctx context.Context, keyword string) (UserList, error) {
	return call[UserList](ctx, c, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/user/search",
		Query:  query("keyword", keyword),
	})
}

func (c *Client) GetUser(ctx context.Context, username string) (domain.User, error) {
	return call[domain.User](ctx, c, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/user/username",
		Query:  query("username", username),
	})
}

func (c *Client) UpdateProfile(ctx context.Context, username string, in UpdateProfileRequest) (domain.User, error) {
	return call[domain.User](ctx, c, gateway.Request{
		Method: http.MethodPatch,
		Path:   "/api/user/update-info",
		Query:  query("username", username),
		Body:   in,
	})
}

func (c *Client) UploadPicture(ctx context.Context, username string, file gateway.File) (domain.User, error) {
	file.Field = "file"
	return call[domain.User](ctx, c, gateway.Request{
		Method:    http.MethodPost,
		Path:      "/api/user/upload-picture",
		Query:     query("username", username),
		Multipart: &gateway.Multipart{Files: []gateway.File{file}},
	})
}

func (c *Client) DeletePicture(ctx context.Context, username string) (domain.User, error) {
	return call[domain.User](ctx, c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/user/delete-picture",
		Query:  query("username", username),
	})
}
