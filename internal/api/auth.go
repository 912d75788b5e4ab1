package api

import (
	"context"
	"net/http"

	"ping_client/internal/gateway"
)

type LoginRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	VerifyPassword string `json:"verifyPassword"`
}

type LoginResponse struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
	Message  string `json:"message"`
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type RegisterResponse struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Message  string `json:"message"`
}

type ForgotPasswordResponse struct {
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message"`
}

type ResetPasswordRequest struct {
	NewPassword    string `json:"newPassword"`
	VerifyPassword string `json:"verifyPassword"`
}

type ResetPasswordResponse struct {
	Username string `json:"username,omitempty"`
	Message  string `json:"message"`
}

// MessageResponse is the body of endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message"`
}

// MeResponse is the profile behind a credential. The identity fields are
// pointers so that a response missing them can be told apart from zero.
type MeResponse struct {
	ID             *int64   `json:"id"`
	Username       *string  `json:"username"`
	FirstName      string   `json:"firstName,omitempty"`
	LastName       string   `json:"lastName,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	ProfilePicture string   `json:"profilePicture,omitempty"`
	Roles          []string `json:"roles"`
}

func (c *Client) Login(ctx context.Context, in LoginRequest) (LoginResponse, error) {
	return call[LoginResponse](ctx, c, gateway.Request{Method: http.MethodPost, Path: "/api/auth/login", Body: in})
}

func (c *Client) Register(ctx context.Context, in RegisterRequest) (RegisterResponse, error) {
	return call[RegisterResponse](ctx, c, gateway.Request{Method: http.MethodPost, Path: "/api/auth/register", Body: in})
}

func (c *Client) ForgotPassword(ctx context.Context, phone string) (ForgotPasswordResponse, error) {
	return call[ForgotPasswordResponse](ctx, c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/forgot-password",
		Body:   map[string]string{"phone": phone},
	})
}

func (c *Client) VerifyCode(ctx context.Context, phone, code string) (MessageResponse, error) {
	return call[MessageResponse](ctx, c, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/auth/verify-code",
		Query:  query("phone", phone),
		Body:   map[string]string{"code": code},
	})
}

func (c *Client) ResetPassword(ctx context.Context, phone string, in ResetPasswordRequest) (ResetPasswordResponse, error) {
	return call[ResetPasswordResponse](ctx, c, gateway.Request{
		Method: http.MethodPatch,
		Path:   "/api/auth/reset-password",
		Query:  query("phone", phone),
		Body:   in,
	})
}

// VerifyToken asks the server whether the stored credential is still valid.
func (c *Client) VerifyToken(ctx context.Context) error {
	return exec(ctx, c, gateway.Request{Method: http.MethodGet, Path: "/api/auth/verify"})
}

// Me resolves the profile of token. The token is attached explicitly, not
// read from the credential store.
func (c *Client) Me(ctx context.Context, token string) (MeResponse, error) {
	return call[MeResponse](ctx, c, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/auth/me",
		Query:  query("token", token),
		Token:  token,
	})
}
