package domain

import "net/url"

// Routes the client navigates between.
const (
	RouteLogin         = "/auth/login"
	RouteSocial        = "/social"
	RouteVerifyCode    = "/auth/verify-code"
	RouteResetPassword = "/auth/reset-password"
)

// Navigator moves the front-end to another route. Implementations must be
// safe for concurrent use.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// WithPhone appends the phone query parameter carried between the
// password recovery steps.
func WithPhone(route, phone string) string {
	return route + "?" + url.Values{"phone": {phone}}.Encode()
}
