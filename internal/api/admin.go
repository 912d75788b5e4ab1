package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ping_client/internal/domain"
	"ping_client/internal/gateway"
)

// AdminUserList accepts either a list or a single user, since lookup by
// phone answers with one object.
type AdminUserList []domain.User

func (l *AdminUserList) UnmarshalJSON(b []byte) error {
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '{' {
		var u domain.User
		if err := json.Unmarshal(trimmed, &u); err != nil {
			return err
		}
		*l = AdminUserList{u}
		return nil
	}
	var users []domain.User
	if err := json.Unmarshal(b, &users); err != nil {
		return err
	}
	*l = users
	return nil
}

func (l AdminUserList) Validate() error {
	for _, u := range l {
		if u.Username == "" {
			return errors.New("user without username")
		}
	}
	return nil
}

const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

func (c *Client) AdminAllUsers(ctx context.Context) (AdminUserList, error) {
	return call[AdminUserList](ctx, c, gateway.Request{Method: http.MethodGet, Path: "/api/admin/users/all"})
}

func (c *Client) AdminUsersByLastName(ctx context.Context, lastName string) (AdminUserList, error) {
	return call[AdminUserList](ctx, c, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/admin/users/lastName",
		Query:  query("lastName", lastName),
	})
}

func (c *Client) AdminUsersByFirstName(ctx context.Context, firstName string) (AdminUserList, error) {
	return call[AdminUserList](ctx, c, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/admin/users/firstName",
		Query:  query("firstName", firstName),
	})
}

func (c *Client) AdminUsersByPhone(ctx context.Context, phone string) (AdminUserList, error) {
	return call[AdminUserList](ctx, c, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/admin/users/phone",
		Query:  query("phone", phone),
	})
}

func (c *Client) CreateRole(ctx context.Context, role string) error {
	return exec(ctx, c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/admin/role",
		Query:  query("name-role", role),
	})
}

// DeleteRole keeps the doubled separator the server's routing table has
// always been called with.
// TODO: switch to /api/admin/role once the server confirms both forms route.
func (c *Client) DeleteRole(ctx context.Context, role string) error {
	return exec(ctx, c, gateway.Request{
		Method: http.MethodDelete,
		Path:   "//api/admin/role",
		Query:  query("name-role", role),
	})
}

func (c *Client) AssignRole(ctx context.Context, username, role string) (domain.User, error) {
	return call[domain.User](ctx, c, gateway.Request{
		Method: http.MethodPatch,
		Path:   "/api/admin/role/assign-to-user",
		Query:  query("username", username, "role", role),
	})
}

func (c *Client) RemoveRole(ctx context.Context, username, role string) (domain.User, error) {
	return call[domain.User](ctx, c, gateway.Request{
		Method: http.MethodPatch,
		Path:   "/api/admin/role/remove-to-user",
		Query:  query("username", username, "role", role),
	})
}

func (c *Client) DeleteUser(ctx context.Context, username string) error {
	return exec(ctx, c, gateway.Request{Method: http.MethodDelete, Path: "/api/admin/user/" + seg(username)})
}
