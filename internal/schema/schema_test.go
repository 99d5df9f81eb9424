package schema

import (
	"testing"

	"github.com/htmue/purescript-backend-optimizer/internal/testrunner/assert"
)

func TestCompatible_WithinRange(t *testing.T) {
	assert.NoError(t, Compatible("0.1.0"))
	assert.NoError(t, Compatible("0.9.9"))
}

func TestCompatible_TooOld(t *testing.T) {
	assert.Error(t, Compatible("0.0.9"))
}

func TestCompatible_TooNew(t *testing.T) {
	assert.Error(t, Compatible("1.0.0"))
}

func TestCompatible_Malformed(t *testing.T) {
	assert.Error(t, Compatible("not-a-version"))
}
