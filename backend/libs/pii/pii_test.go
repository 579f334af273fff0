package pii

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("199012345678")
	assert.True(t, strings.HasPrefix(a, "pii:"))
	assert.Len(t, a, len("pii:")+12)
	assert.NotContains(t, a, "199012345678")

	assert.Equal(t, a, Fingerprint(" 199012345678 "))
	assert.Equal(t, Fingerprint("901234567v"), Fingerprint("901234567V"))
	assert.NotEqual(t, a, Fingerprint("199012345679"))
	assert.Empty(t, Fingerprint("  "))
}
