package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("reading commit: %w", ObjectNotFound("abcd"))

	assert.True(t, stderrors.Is(err, ErrObjectNotFound))
	assert.False(t, stderrors.Is(err, ErrMalformedObject))
	assert.Contains(t, err.Error(), "abcd")

	var typed *Error
	if assert.True(t, stderrors.As(err, &typed)) {
		assert.Equal(t, ErrorTypeObjectNotFound, typed.Type)
		assert.Equal(t, "abcd", typed.Details)
	}
}

func TestNoCommonAncestor(t *testing.T) {
	err := NoCommonAncestor("a", "b")
	assert.True(t, stderrors.Is(err, ErrNoCommonAncestor))
	assert.Equal(t, []string{"a", "b"}, err.Details)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("getting branch: %w", NotFound("branch not found: dev"))))
	assert.False(t, IsNotFound(ObjectNotFound("abcd")))
	assert.False(t, IsNotFound(nil))
}
