package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Men's Shirts":       "men-s-shirts",
		"  Kurta & Sets  ":   "kurta-sets",
		"Winter--Wear 2026!": "winter-wear-2026",
		"***":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"cotton", "summer"}, NormalizeTags([]string{" Cotton", "SUMMER", "cotton", ""}))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "asha@example.com", NormalizeEmail("  Asha@Example.COM "))
}

func TestRandomHex(t *testing.T) {
	s, err := RandomHex(4)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{8}$`), s)
}

func TestNewOTP(t *testing.T) {
	for i := 0; i < 50; i++ {
		otp, err := NewOTP()
		require.NoError(t, err)
		assert.Regexp(t, `^[1-9][0-9]{5}$`, otp)
	}
}

func TestNumericCode(t *testing.T) {
	code, err := NumericCode(1)
	require.NoError(t, err)
	assert.Regexp(t, `^[1-9]$`, code)

	code, err = NumericCode(18)
	require.NoError(t, err)
	assert.Len(t, code, 18)

	_, err = NumericCode(0)
	assert.Error(t, err)
	_, err = NumericCode(19)
	assert.Error(t, err)
}

func TestCSVCell(t *testing.T) {
	tests := map[string]string{
		"":                         "",
		"asha@example.com":         "asha@example.com",
		"=HYPERLINK(\"http://x\")": "'=HYPERLINK(\"http://x\")",
		"+91 98765":                "'+91 98765",
		"-2+3":                     "'-2+3",
		"@SUM(A1)":                 "'@SUM(A1)",
		"\t=1":                     "'\t=1",
		"Rao-Iyer":                 "Rao-Iyer",
	}
	for in, want := range tests {
		assert.Equal(t, want, CSVCell(in), in)
	}
}
