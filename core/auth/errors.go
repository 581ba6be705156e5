package auth

import "errors"

// Errors surfaced by the login and session lifecycle. Everything a store or
// the network throws at us is folded into ErrTransient; only a definite
// bad-credential verdict produces ErrInvalidCredentials.
var (
	// ErrInvalidCredentials covers both unknown handle and wrong password,
	// so a caller cannot probe which handles exist.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountInactive means the account is known and deactivated. Trying
	// again does not count as a failed attempt.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrAccountLocked is returned at the moment a failed attempt trips the
	// lockout threshold.
	ErrAccountLocked = errors.New("account locked")

	// ErrTransient marks a backend failure the caller may retry.
	ErrTransient = errors.New("temporary failure")

	// ErrValidation marks input rejected before any store call.
	ErrValidation = errors.New("validation failed")

	ErrSessionNotFound = errors.New("session not found")
)

// LoginError wraps a login verdict with the number of attempts left before
// lockout. AttemptsRemaining is meaningful only for ErrInvalidCredentials
// and ErrAccountLocked (where it is zero).
type LoginError struct {
	Err               error
	AttemptsRemaining int
}

func (e *LoginError) Error() string { return e.Err.Error() }

func (e *LoginError) Unwrap() error { return e.Err }

// AttemptsRemaining extracts the remaining-attempt count from err, or -1
// when err carries none.
func AttemptsRemaining(err error) int {
	var le *LoginError
	if errors.As(err, &le) {
		return le.AttemptsRemaining
	}
	return -1
}
