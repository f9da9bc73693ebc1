package server

import "errors"

var (
	// ErrDeauthorized means the remote refresh token is permanently invalid;
	// the user's local token state has already been cleared.
	ErrDeauthorized = errors.New("user is deauthorized")
	// ErrTransient covers network faults, 5xx and malformed bodies during a
	// refresh. Token state is untouched and a later retry may succeed.
	ErrTransient = errors.New("transient token refresh failure")
)
