package view

import (
	"context"
	"errors"
	"strings"

	"ping_client/internal/api"
	"ping_client/internal/domain"
)

// ErrForbidden means the session user lacks the admin role.
var ErrForbidden = errors.New("admin role required")

type UserFilter string

const (
	FilterAll       UserFilter = ""
	FilterLastName  UserFilter = "lastName"
	FilterFirstName UserFilter = "firstName"
	FilterPhone     UserFilter = "phone"
)

// AdminView manages accounts and roles. Admin users are keyed by username.
type AdminView struct {
	*base
	users []domain.User
}

func NewAdmin(deps Deps) *AdminView {
	return &AdminView{base: newBase(deps, "admin")}
}

func (v *AdminView) Load(ctx context.Context) error {
	return v.Filter(ctx, FilterAll, "")
}

// Filter lists users matching term on the given field. An empty term lists
// every user.
func (v *AdminView) Filter(ctx context.Context, by UserFilter, term string) error {
	if err := v.requireAdmin(); err != nil {
		return v.fail(err)
	}
	term = strings.TrimSpace(term)
	if term == "" {
		by = FilterAll
	}
	v.mu.Lock()
	v.beginLocked()
	v.mu.Unlock()

	ctx, done := v.scope(ctx)
	defer done()
	var (
		list api.AdminUserList
		err  error
	)
	switch by {
	case FilterAll:
		list, err = v.deps.API.AdminAllUsers(ctx)
	case FilterLastName:
		list, err = v.deps.API.AdminUsersByLastName(ctx, term)
	case FilterFirstName:
		list, err = v.deps.API.AdminUsersByFirstName(ctx, term)
	case FilterPhone:
		list, err = v.deps.API.AdminUsersByPhone(ctx, term)
	default:
		err = domain.ErrInvalidInput
	}
	if err != nil {
		return v.fail(err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.users = list
	v.state = Ready
	return nil
}

func (v *AdminView) requireAdmin() error {
	me, err := v.me()
	if err != nil {
		return err
	}
	if !me.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (v *AdminView) Users() []domain.User {
	v.mu.Lock()
	defer v.mu.Unlock()
	return clone(v.users)
}

func (v *AdminView) CreateRole(ctx context.Context, role string) error {
	return v.roleCall(ctx, role, v.deps.API.CreateRole)
}

func (v *AdminView) DeleteRole(ctx context.Context, role string) error {
	return v.roleCall(ctx, role, v.deps.API.DeleteRole)
}

func (v *AdminView) roleCall(ctx context.Context, role string, call func(context.Context, string) error) error {
	if err := v.requireAdmin(); err != nil {
		return v.fail(err)
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return domain.ErrInvalidInput
	}
	ctx, done := v.scope(ctx)
	defer done()
	if err := call(ctx, role); err != nil {
		return v.fail(err)
	}
	v.mu.Lock()
	v.err = nil
	v.mu.Unlock()
	return nil
}

func (v *AdminView) AssignRole(ctx context.Context, username, role string) error {
	return v.userRoleCall(ctx, username, role, v.deps.API.AssignRole)
}

func (v *AdminView) RemoveRole(ctx context.Context, username, role string) error {
	return v.userRoleCall(ctx, username, role, v.deps.API.RemoveRole)
}

// userRoleCall changes a user's roles and takes the roles the server
// returns for that user.
func (v *AdminView) userRoleCall(ctx context.Context, username, role string, call func(context.Context, string, string) (domain.User, error)) error {
	if err := v.requireAdmin(); err != nil {
		return v.fail(err)
	}
	if username == "" || role == "" {
		return domain.ErrInvalidInput
	}
	ctx, done := v.scope(ctx)
	defer done()
	u, err := call(ctx, username, role)
	if err != nil {
		return v.fail(err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.err = nil
	if u.Username == "" {
		return nil
	}
	for i := range v.users {
		if v.users[i].Username == u.Username {
			v.users[i].Roles = append([]string(nil), u.Roles...)
		}
	}
	return nil
}

// DeleteUser removes an account and drops it from the list.
func (v *AdminView) DeleteUser(ctx context.Context, username string) error {
	if err := v.requireAdmin(); err != nil {
		return v.fail(err)
	}
	ctx, done := v.scope(ctx)
	defer done()
	if err := v.deps.API.DeleteUser(ctx, username); err != nil {
		return v.fail(err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed() {
		return domain.ErrClosed
	}
	v.err = nil
	out := v.users[:0]
	for _, u := range v.users {
		if u.Username != username {
			out = append(out, u)
		}
	}
	v.users = out
	return nil
}
