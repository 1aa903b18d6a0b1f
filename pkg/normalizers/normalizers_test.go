package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Ravi Kumar", "ravi kumar"},
		{"Ravi  Kumar  Jr.", "ravi kumar"},
		{"O'Brien, Mary", "obrien mary"},
		{"James Smith III", "james smith"},
		{"  Asha  ", "asha"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeName(tt.input), "input: %q", tt.input)
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "15551234567", NormalizePhone("+1 (555) 123-4567"))
	assert.Equal(t, "", NormalizePhone("no digits"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ravi@example.com", NormalizeEmail("  Ravi@Example.COM "))
}

func TestApply_UnknownNormalizerReturnsValue(t *testing.T) {
	assert.Equal(t, "as-is", Apply("as-is", "nope"))
}

func TestRegisterAndGet(t *testing.T) {
	Register("upper", func(s string) string { return s + "!" })
	fn, ok := Get("upper")
	assert.True(t, ok)
	assert.Equal(t, "hi!", fn("hi"))
}
