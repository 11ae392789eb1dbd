package auth

import (
	"fmt"
	"regexp"
	"strings"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validateCredentials checks email shape and password length locally, before
// any remote call is made.
func validateCredentials(email, password string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: malformed email address", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return nil
}

// validateNames checks the required signup name fields.
func validateNames(firstName, lastName string) error {
	if strings.TrimSpace(firstName) == "" {
		return fmt.Errorf("%w: first name is required", ErrValidation)
	}
	if strings.TrimSpace(lastName) == "" {
		return fmt.Errorf("%w: last name is required", ErrValidation)
	}
	return nil
}
