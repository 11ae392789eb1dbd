package auth

import "errors"

// Sentinel errors for authentication outcomes. These are wrapped with
// context using fmt.Errorf("%w") so callers can branch with errors.Is
// without knowing provider internals.
var (
	// ErrValidation indicates the request was rejected locally before any
	// remote call was made (empty required field, malformed email, short
	// password).
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials indicates the provider rejected the credentials.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrDuplicateAccount indicates an account already exists for the email.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrPendingVerification indicates the account was created but the
	// provider requires email verification before sign-in.
	ErrPendingVerification = errors.New("account pending verification")

	// ErrNetwork indicates a transport or provider failure.
	ErrNetwork = errors.New("provider request failed")

	// ErrUnknown indicates a failure that could not be classified.
	ErrUnknown = errors.New("unknown auth error")
)
