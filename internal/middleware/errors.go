package middleware

import "github.com/pkg/errors"

// Sentinel errors per spec.md §7's error taxonomy, checked with errors.Is at
// the point each middleware translates them into an HTTP response — never
// returned to a caller as a bare string.
var (
	// ErrPaused is returned by PauseFlag.Guard while the service is paused
	// for maintenance, before the wrapped handler is ever entered.
	ErrPaused = errors.New("middleware: paused for maintenance")

	// ErrForbidden is returned by ServiceToken when the caller's
	// X-Service-Token does not match the configured token.
	ErrForbidden = errors.New("middleware: forbidden")
)
