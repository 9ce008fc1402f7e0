package apierror

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	authErr := NewAPIError(ErrAuth, "integration requires re-authentication", nil)
	assert.Equal(t, ErrAuth, CodeOf(authErr))
	assert.True(t, IsAuthError(authErr))

	wrapped := errors.Wrap(authErr, "processing item")
	assert.Equal(t, ErrAuth, CodeOf(wrapped))
	assert.True(t, IsAuthError(wrapped))

	assert.Equal(t, ErrInternalServer, CodeOf(errors.New("boom")))
	assert.False(t, IsAuthError(errors.New("boom")))
}

func TestIsNotFound(t *testing.T) {
	err := NewAPIError(ErrNotFound, "Integration not found", nil)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAuthError(err))
	assert.Equal(t, "NOT_FOUND: Integration not found", err.Error())
}
