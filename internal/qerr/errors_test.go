package qerr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := KeyMissing("steps", "missing key %q", "steps")
	assert.Equal(t, `KEY_MISSING: steps: missing key "steps"`, err.Error())

	err = NotAllowed("precompilation steps incomplete")
	assert.Equal(t, "NOT_ALLOWED: precompilation steps incomplete", err.Error())
}

func TestIsHelpersUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("precompile: %w", NotImplemented("granularity %s", "week"))

	assert.True(t, IsNotImplemented(wrapped))
	assert.False(t, IsKeyMissing(wrapped))
	assert.False(t, IsNotAllowed(wrapped))
	assert.Equal(t, CodeNotImplemented, CodeOf(wrapped))
}

func TestCodeOfForeignError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(fmt.Errorf("boom")))
	assert.False(t, IsKeyMissing(nil))
}
