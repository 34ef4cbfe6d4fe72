package service

import (
	"errors"
)

// Kind is the short machine-readable code returned to clients.
type Kind string

const (
	KindCaptchaFailed   Kind = "captcha_failed"
	KindInvalidPrice    Kind = "invalid_price"
	KindWrongDate       Kind = "wrong_date"
	KindGameClosed      Kind = "game_closed"
	KindNoGuessesLeft   Kind = "no_guesses_left"
	KindAlreadyUnlocked Kind = "already_unlocked"
	KindInvalidToken    Kind = "invalid_token"
	KindInvalidEmail    Kind = "invalid_email"
)

// Error is a user-facing failure: a short code plus a human message.
// Anything else that goes wrong stays internal, is logged with context
// and retried where the operation allows it.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// AsError unwraps a user-facing Error if err carries one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
