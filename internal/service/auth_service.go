package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/gateway"
)

// AuthAPI is the part of the API the auth flows call.
type AuthAPI interface {
	Login(ctx context.Context, in api.LoginRequest) (api.LoginResponse, error)
	Register(ctx context.Context, in api.RegisterRequest) (api.RegisterResponse, error)
	ForgotPassword(ctx context.Context, phone string) (api.ForgotPasswordResponse, error)
	VerifyCode(ctx context.Context, phone, code string) (api.MessageResponse, error)
	ResetPassword(ctx context.Context, phone string, in api.ResetPasswordRequest) (api.ResetPasswordResponse, error)
	VerifyToken(ctx context.Context) error
}

// Realtime is the session's push connection, torn down on logout.
type Realtime interface {
	Deactivate()
}

// InlineError is a failure the server reported in a 2xx body. Message is
// shown to the user as is.
type InlineError struct {
	Message string
}

func (e *InlineError) Error() string {
	return e.Message
}

func inline(msg, fallback string) *InlineError {
	if strings.TrimSpace(msg) == "" {
		msg = fallback
	}
	return &InlineError{Message: msg}
}

// AuthService runs login, registration, password recovery, session
// verification and logout against the Ping API.
type AuthService struct {
	api   AuthAPI
	creds domain.CredentialStore
	nav   domain.Navigator
	rt    Realtime
	log   zerolog.Logger
}

// NewAuthService wires the flows. rt may be nil when no push connection
// is used.
func NewAuthService(authAPI AuthAPI, creds domain.CredentialStore, nav domain.Navigator, rt Realtime, logger zerolog.Logger) *AuthService {
	if nav == nil {
		nav = domain.NavigatorFunc(func(string) {})
	}
	return &AuthService{
		api:   authAPI,
		creds: creds,
		nav:   nav,
		rt:    rt,
		log:   logger.With().Str("component", "auth").Logger(),
	}
}

type LoginInput struct {
	Username       string
	Password       string
	VerifyPassword string
}

// Login signs in and stores the issued token. A reply without a token is
// an *InlineError carrying the server's message.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*api.LoginResponse, error) {
	if in.Password != in.VerifyPassword {
		return nil, domain.ErrPasswordMismatch
	}
	resp, err := s.api.Login(ctx, api.LoginRequest{
		Username:       in.Username,
		Password:       in.Password,
		VerifyPassword: in.VerifyPassword,
	})
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, inline(resp.Message, "Login failed")
	}
	if err := s.creds.Set(ctx, resp.Token); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	s.log.Info().Str("username", resp.Username).Msg("signed in")
	s.nav.Navigate(domain.RouteSocial)
	return &resp, nil
}

type RegisterInput struct {
	Username        string
	Phone           string
	Password        string
	ConfirmPassword string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*api.RegisterResponse, error) {
	if in.Password != in.ConfirmPassword {
		return nil, domain.ErrPasswordMismatch
	}
	resp, err := s.api.Register(ctx, api.RegisterRequest{
		Username:        in.Username,
		Phone:           in.Phone,
		Password:        in.Password,
		ConfirmPassword: in.ConfirmPassword,
	})
	if err != nil {
		return nil, err
	}
	if resp.ID == 0 && resp.Username == "" {
		return nil, inline(resp.Message, "Registration failed")
	}
	s.nav.Navigate(domain.RouteLogin)
	return &resp, nil
}

// ForgotPassword asks the server to send a verification code to phone.
func (s *AuthService) ForgotPassword(ctx context.Context, phone string) (*api.ForgotPasswordResponse, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, domain.ErrInvalidInput
	}
	resp, err := s.api.ForgotPassword(ctx, phone)
	if err != nil {
		return nil, err
	}
	s.nav.Navigate(domain.WithPhone(domain.RouteVerifyCode, phone))
	return &resp, nil
}

// ResetPassword sets a new password for a phone whose code was verified.
func (s *AuthService) ResetPassword(ctx context.Context, phone, password, verify string) (*api.ResetPasswordResponse, error) {
	if password != verify {
		return nil, domain.ErrPasswordMismatch
	}
	resp, err := s.api.ResetPassword(ctx, phone, api.ResetPasswordRequest{NewPassword: password, VerifyPassword: verify})
	if err != nil {
		return nil, err
	}
	if resp.Username == "" {
		return nil, inline(resp.Message, "Password reset failed")
	}
	s.nav.Navigate(domain.RouteLogin)
	return &resp, nil
}

// VerifySession checks the stored token with the server. A rejected token
// is deleted; a canceled check changes nothing.
func (s *AuthService) VerifySession(ctx context.Context) error {
	err := s.api.VerifyToken(ctx)
	if err == nil {
		s.nav.Navigate(domain.RouteSocial)
		return nil
	}
	if gateway.IsKind(err, gateway.KindCanceled) {
		return err
	}
	if derr := s.creds.Delete(ctx); derr != nil {
		s.log.Warn().Err(derr).Msg("delete stored credential")
	}
	s.nav.Navigate(domain.RouteLogin)
	return fmt.Errorf("%w: %w", domain.ErrNotAuthenticated, err)
}

// Logout forgets the credential and closes the push connection.
func (s *AuthService) Logout(ctx context.Context) error {
	err := s.creds.Delete(ctx)
	if s.rt != nil {
		s.rt.Deactivate()
	}
	s.nav.Navigate(domain.RouteLogin)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

var (
	errNotDigit      = errors.New("code fields take a single digit")
	errPhoneRequired = errors.New("phone number is required")
)

// CodeEntry collects a verification code one field at a time. Completing
// the last empty field submits the code.
type CodeEntry struct {
	svc   *AuthService
	phone string

	mu     sync.Mutex
	fields [CodeLength]string
}

func (s *AuthService) NewCodeEntry(phone string) *CodeEntry {
	return &CodeEntry{svc: s, phone: phone}
}

// Enter sets field i to v, a single digit, or clears it when v is empty.
// When every field is filled the code is verified; on success the flow
// moves on to the password reset. A rejected code empties every field.
func (c *CodeEntry) Enter(ctx context.Context, i int, v string) error {
	if strings.TrimSpace(c.phone) == "" {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errPhoneRequired)
	}
	if i < 0 || i >= CodeLength {
		return fmt.Errorf("%w: field %d", domain.ErrInvalidInput, i)
	}
	if v != "" && (len(v) != 1 || v[0] < '0' || v[0] > '9') {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errNotDigit)
	}

	c.mu.Lock()
	c.fields[i] = v
	code, complete := c.codeLocked()
	c.mu.Unlock()
	if !complete {
		return nil
	}

	resp, err := c.svc.api.VerifyCode(ctx, c.phone, code)
	if err != nil {
		c.mu.Lock()
		c.fields = [CodeLength]string{}
		c.mu.Unlock()
		return err
	}
	c.svc.log.Debug().Str("phone", c.phone).Str("reply", resp.Message).Msg("code verified")
	c.svc.nav.Navigate(domain.WithPhone(domain.RouteResetPassword, c.phone))
	return nil
}

// Code returns the digits entered so far.
func (c *CodeEntry) Code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	code, _ := c.codeLocked()
	return code
}

func (c *CodeEntry) codeLocked() (string, bool) {
	var b strings.Builder
	complete := true
	for _, f := range c.fields {
		if f == "" {
			complete = false
		}
		b.WriteString(f)
	}
	return b.String(), complete
}
