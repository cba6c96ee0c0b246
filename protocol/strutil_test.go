package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUint8(t *testing.T) {
	tests := []struct {
		in   string
		want uint8
		n    int
		err  error
	}{
		{"0", 0, 1, nil},
		{"7 PING", 7, 1, nil},
		{"42", 42, 2, nil},
		{"255", 255, 3, nil},
		{"007", 7, 3, nil},
		{"12a", 12, 2, nil},
		{"", 0, 0, nil},
		{"x1", 0, 0, nil},
		{"256", 0, 3, ErrNumberRange},
		{"999", 0, 3, ErrNumberRange},
		{"1000", 0, 3, ErrNumberTooLong},
		{"0001", 0, 3, ErrNumberTooLong},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			v, n, err := ParseUint8(tc.in)
			require.ErrorIs(t, err, tc.err)
			assert.Equal(t, tc.want, v)
			assert.Equal(t, tc.n, n)
		})
	}
}

func TestParseInt8(t *testing.T) {
	tests := []struct {
		in   string
		want int8
		err  error
	}{
		{"0", 0, nil},
		{"-5", -5, nil},
		{"127", 127, nil},
		{"-128", -128, nil},
		{"128", 0, ErrNumberRange},
		{"-129", 0, ErrNumberRange},
		{"-1000", 0, ErrNumberTooLong},
		{"-", 0, nil},
	}

	for _, tc := range tests {
		v, _, err := ParseInt8(tc.in)
		require.ErrorIs(t, err, tc.err, tc.in)
		assert.Equal(t, tc.want, v, tc.in)
	}
}

func TestAtoHelpersTreatErrorsAsZero(t *testing.T) {
	assert.Equal(t, uint8(200), AtoU8("200"))
	assert.Equal(t, uint8(0), AtoU8("300"))
	assert.Equal(t, uint8(0), AtoU8("abc"))
	assert.Equal(t, int8(-12), AtoI8("-12"))
	assert.Equal(t, int8(0), AtoI8("-300"))
}

func TestFormatNumbers(t *testing.T) {
	for n := 0; n <= 255; n++ {
		s := FormatUint8(uint8(n))
		v, consumed, err := ParseUint8(s)
		require.NoError(t, err)
		require.Equal(t, len(s), consumed)
		require.Equal(t, uint8(n), v)
	}

	assert.Equal(t, "-128", FormatInt8(-128))
	assert.Equal(t, "-1", FormatInt8(-1))
	assert.Equal(t, "127", FormatInt8(127))
	assert.Equal(t, "0", FormatInt8(0))
}
