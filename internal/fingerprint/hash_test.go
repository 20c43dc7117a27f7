package fingerprint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshsreehari/coderev-platform/internal/fingerprint"
)

func TestHash_Deterministic(t *testing.T) {
	content := []byte("eval(input)\n")

	a := fingerprint.Hash(content)
	b := fingerprint.Hash(content)

	assert.Equal(t, a, b)
	assert.Len(t, string(a), 64)
}

func TestHash_DifferentContentDifferentFingerprint(t *testing.T) {
	a := fingerprint.Hash([]byte("a"))
	b := fingerprint.Hash([]byte("b"))

	assert.NotEqual(t, a, b)
}

func TestHash_EmptyContent(t *testing.T) {
	assert.NotPanics(t, func() {
		fingerprint.Hash(nil)
	})
}
