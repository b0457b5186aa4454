package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecretKeepsPrefixAndSuffix(t *testing.T) {
	assert.Equal(t, "cs_****7890", MaskSecret("cs_1234567890"))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "", MaskSecret("  "))
}

func TestMaskMetadata(t *testing.T) {
	out := MaskMetadata(map[string]any{
		"recipient":         "complaints@ryanair.com",
		"payment_reference": "cs_test_abcdef",
		"letter_type":       "initial",
	})
	assert.Equal(t, "c****@ryanair.com", out["recipient"])
	assert.Equal(t, "cs_test_****cdef", out["payment_reference"])
	assert.Equal(t, "initial", out["letter_type"])
	assert.Nil(t, MaskMetadata(nil))
}
