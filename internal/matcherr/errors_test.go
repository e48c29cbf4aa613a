package matcherr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfUnwrapsWrappedError(t *testing.T) {
	base := NewForURL(KindTimeout, "http://x/1.png", "timed out", errors.New("boom"))
	wrapped := fmt.Errorf("ingest failed: %w", base)

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindTimeout, kind)
}

func TestKindOfFalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestFatalMarksStartupErrorsOnly(t *testing.T) {
	assert.True(t, New(KindModelLoadFailure, "boom", nil).Fatal())
	assert.True(t, New(KindCacheDirUnusable, "boom", nil).Fatal())
	assert.False(t, New(KindTimeout, "boom", nil).Fatal())
}

func TestStatusOfUnwrapsWrappedHTTPError(t *testing.T) {
	base := NewHTTPError(404, "http://x/1.png", "not found", nil)
	wrapped := fmt.Errorf("fetch failed: %w", base)

	status, ok := StatusOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, 404, status)
}

func TestStatusOfFalseForNonHTTPError(t *testing.T) {
	_, ok := StatusOf(New(KindTimeout, "boom", nil))
	assert.False(t, ok)
}
