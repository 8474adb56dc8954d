package corerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_FormatsWithoutCause(t *testing.T) {
	err := New(KindNotFound, "job missing")
	assert.Equal(t, "not_found: job missing", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWrap_FormatsWithCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindIO, "failed to save image", cause)
	assert.Equal(t, "io_error: failed to save image: disk full", err.Error())
	assert.Equal(t, cause, err.Unwrap())
}

func TestNewf_FormatsMessage(t *testing.T) {
	err := Newf(KindGenerationFailed, "generation failed: %s", "sampler exploded")
	assert.Equal(t, "generation_failed: generation failed: sampler exploded", err.Error())
}

func TestIs_MatchesKindThroughWrapping(t *testing.T) {
	err := Wrap(KindTimeout, "context deadline", errors.New("inner"))
	assert.True(t, Is(err, KindTimeout))
	assert.False(t, Is(err, KindCancelled))
}

func TestIs_LostThroughPlainStringWrap(t *testing.T) {
	inner := New(KindNotPending, "job not pending")
	wrapped := errors.New("context: " + inner.Error())
	assert.False(t, Is(wrapped, KindNotPending), "plain string wrapping loses the Kind, unlike %w wrapping")
}

func TestIs_FalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), KindUpstream))
}

func TestIs_FalseForNilError(t *testing.T) {
	assert.False(t, Is(nil, KindUpstream))
}
