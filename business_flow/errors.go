// Package businessflow contains the core business logic and use cases for mailing workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// User-related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Access policy errors
	ErrAccessDenied = errors.New("access denied")

	// Recipient-related errors
	ErrRecipientNotFound  = errors.New("recipient not found")
	ErrDuplicateRecipient = errors.New("recipient with this email already exists")
	ErrNoValidEmails      = errors.New("no valid email addresses found")

	// Message-related errors
	ErrMessageNotFound = errors.New("message not found")

	// Mailing-related errors
	ErrMailingNotFound      = errors.New("mailing not found")
	ErrMailingNoMessage     = errors.New("mailing has no message attached")
	ErrInvalidStatusChange  = errors.New("invalid mailing status transition")
	ErrRecipientSetConflict = errors.New("recipient does not belong to the mailing owner")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error classification helpers used by the handler layer

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsEmailTaken(err error) bool {
	return errors.Is(err, ErrEmailTaken)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

func IsDuplicateRecipient(err error) bool {
	return errors.Is(err, ErrDuplicateRecipient)
}

func IsNoValidEmails(err error) bool {
	return errors.Is(err, ErrNoValidEmails)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecipientNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrMailingNotFound)
}

func IsMailingNoMessage(err error) bool {
	return errors.Is(err, ErrMailingNoMessage)
}

func IsInvalidStatusChange(err error) bool {
	return errors.Is(err, ErrInvalidStatusChange)
}

func IsRecipientSetConflict(err error) bool {
	return errors.Is(err, ErrRecipientSetConflict)
}
