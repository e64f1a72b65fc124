package otp

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerate_FixedWidth(t *testing.T) {
	for _, digits := range []int{MinDigits, 6, 8, MaxDigits} {
		g, err := NewGenerator(digits)
		require.NoError(t, err)
		require.Equal(t, digits, g.Digits())

		pattern := regexp.MustCompile(`^[0-9]+$`)
		for i := 0; i < 200; i++ {
			code, err := g.Generate()
			require.NoError(t, err)
			require.Len(t, code, digits)
			require.Regexp(t, pattern, code)
		}
	}
}

func TestGenerate_KeepsLeadingZeros(t *testing.T) {
	g, err := NewGenerator(MinDigits)
	require.NoError(t, err)

	// With 10^4 outcomes a leading zero shows up in ~10% of draws.
	sawLeadingZero := false
	for i := 0; i < 2000 && !sawLeadingZero; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		sawLeadingZero = code[0] == '0'
	}
	require.True(t, sawLeadingZero)
}

func TestNewGenerator_RejectsOutOfRange(t *testing.T) {
	_, err := NewGenerator(MinDigits - 1)
	require.Error(t, err)
	_, err = NewGenerator(MaxDigits + 1)
	require.Error(t, err)
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	require.Len(t, a, 43)
	require.NotEqual(t, a, b)
	require.Regexp(t, `^[A-Za-z0-9_-]+$`, a)
}
