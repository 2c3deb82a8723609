package optimizer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntLiteral(t *testing.T) {
	cases := []struct {
		in     string
		value  int64
		width  int
		signed bool
	}{
		{"8'd10", 10, 8, false},
		{"42", 42, 32, true},
		{"-5", -5, 32, true},
		{"4'sb1111", -1, 4, true},
		{"'hff", 255, 32, false},
		{"12'h_F_F", 255, 12, false},
		{"9'o777", 511, 9, false},
		{"3'd9", 1, 3, false},
		{"8 'D 7", 7, 8, false},
	}
	for _, tc := range cases {
		lit, err := parseIntLiteral(tc.in, DefaultWidth)
		require.NoError(t, err, tc.in)
		assert.False(t, lit.unknown, tc.in)
		assert.Equal(t, tc.value, lit.value.Int64(), tc.in)
		assert.Equal(t, tc.width, lit.width, tc.in)
		assert.Equal(t, tc.signed, lit.signed, tc.in)
	}
}

func TestParseIntLiteralUnknownDigits(t *testing.T) {
	cases := map[string]int{
		"8'hx1":    8,
		"4'b1?0z":  4,
		"'bz":      32,
		"16'hZZZZ": 16,
		"2'bX0":    2,
	}
	for in, width := range cases {
		lit, err := parseIntLiteral(in, DefaultWidth)
		require.NoError(t, err, in)
		assert.True(t, lit.unknown, in)
		assert.Equal(t, width, lit.width, in)
	}
}

func TestParseIntLiteralWide(t *testing.T) {
	lit, err := parseIntLiteral("130'h3_0000_0000_0000_0000_0000_0000_0000_0000", 32)
	require.NoError(t, err)
	want := new(big.Int).Lsh(big.NewInt(3), 128)
	assert.Equal(t, 0, want.Cmp(lit.value))
	assert.Equal(t, 130, lit.width)
}

func TestParseIntLiteralUnsizedWidens(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	above64, _ := new(big.Int).SetString("18446744073709551617", 10)
	cases := []struct {
		in     string
		value  *big.Int
		width  int
		signed bool
	}{
		{"2147483648", big.NewInt(2147483648), 33, true},
		{"3000000000", big.NewInt(3000000000), 33, true},
		{"4294967296", big.NewInt(4294967296), 34, true},
		{"-2147483648", big.NewInt(-2147483648), 32, true},
		{"18446744073709551617", above64, 66, true},
		{"123456789012345678901234567890", huge, huge.BitLen() + 1, true},
		{"'h1_0000_0000", big.NewInt(4294967296), 33, false},
	}
	for _, tc := range cases {
		lit, err := parseIntLiteral(tc.in, DefaultWidth)
		require.NoError(t, err, tc.in)
		assert.Equal(t, 0, tc.value.Cmp(lit.value), "%s: got %s", tc.in, lit.value)
		assert.Equal(t, tc.width, lit.width, tc.in)
		assert.Equal(t, tc.signed, lit.signed, tc.in)
	}
}

func TestParseIntLiteralErrors(t *testing.T) {
	for _, in := range []string{"8'q1", "0'd1", "8'd", "8'", "abc", "8'hgg"} {
		_, err := parseIntLiteral(in, DefaultWidth)
		assert.Error(t, err, in)
	}
}

func TestWrap(t *testing.T) {
	assert.Equal(t, int64(254), wrap(big.NewInt(-2), 8, false).Int64())
	assert.Equal(t, int64(-2), wrap(big.NewInt(254), 8, true).Int64())
	assert.Equal(t, int64(44), wrap(big.NewInt(300), 8, false).Int64())
	assert.Equal(t, int64(-7), wrap(big.NewInt(-7), 0, false).Int64())
}
