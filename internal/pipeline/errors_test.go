package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MessageIncludesKindContextAndCause(t *testing.T) {
	err := WrapError(context.DeadlineExceeded, ErrTimeout, "translation gave up").
		WithContext("media", "movie:tt0111161")

	msg := err.Error()
	assert.Contains(t, msg, "[Timeout]")
	assert.Contains(t, msg, "translation gave up")
	assert.Contains(t, msg, "media=movie:tt0111161")
	assert.Contains(t, msg, context.DeadlineExceeded.Error())
}

func TestError_UnwrapReachesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewErrorWithCause(ErrUpstream, "catalog search failed", cause)

	require.ErrorIs(t, err, cause)
}

func TestIsKind_SeesThroughWrapping(t *testing.T) {
	inner := NewError(ErrNotFound, "no source subtitle")
	wrapped := fmt.Errorf("request failed: %w", inner)

	assert.True(t, IsKind(wrapped, ErrNotFound))
	assert.False(t, IsKind(wrapped, ErrUpstream))
	assert.False(t, IsKind(errors.New("plain"), ErrNotFound))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrParse, KindOf(NewError(ErrParse, "no cues")))
	assert.Equal(t, ErrUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, ErrUnknown, KindOf(nil))
}
