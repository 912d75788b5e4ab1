package domain

import "errors"

// Sentinel errors for the client.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrNoCredential     = errors.New("no stored credential")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidInput     = errors.New("invalid input")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrNotConnected     = errors.New("realtime hub is not connected")
	ErrClosed           = errors.New("closed")
)
