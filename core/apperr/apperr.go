// Package apperr defines the structured failures returned by the library and
// playback entry points: a machine-readable code plus a human message.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies a failure.
type Code string

const (
	CodeUsernameExists     Code = "USERNAME_EXISTS"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeNotSignedIn        Code = "NOT_SIGNED_IN"
	CodeAssetMissing       Code = "ASSET_MISSING"
	CodeSongNotFound       Code = "SONG_NOT_FOUND"
	CodeCoverTooSmall      Code = "COVER_TOO_SMALL"
	CodePlaybackFailed     Code = "PLAYBACK_FAILED"
	CodeNotFound           Code = "NOT_FOUND"
	CodeForbidden          Code = "FORBIDDEN"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeStorage            Code = "STORAGE"
	CodeSuperseded         Code = "SUPERSEDED" // a later play request replaced this one
)

// Error is a failure with a code. Err, when set, is the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code carried by err, or "" when err has none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
