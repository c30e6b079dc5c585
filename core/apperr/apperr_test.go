package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeSurvivesWrapping(t *testing.T) {
	base := New(CodeUsernameExists, "username %q already taken", "bob")
	wrapped := fmt.Errorf("register: %w", base)

	assert.True(t, Is(wrapped, CodeUsernameExists))
	assert.False(t, Is(wrapped, CodeInvalidCredentials))
	assert.Equal(t, CodeUsernameExists, CodeOf(wrapped))
	assert.Equal(t, `USERNAME_EXISTS: username "bob" already taken`, base.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeStorage, cause, "save document")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "STORAGE: save document: disk full", err.Error())
	assert.Equal(t, Code(""), CodeOf(cause))
	assert.False(t, Is(nil, CodeStorage))
}
