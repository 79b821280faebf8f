package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0,50", 50},
		{"0.50", 50},
		{"0,5", 50},
		{"12,34", 1234},
		{"12", 1200},
		{"1.005", 101},
		{"1.004", 100},
		{"-3,25", -325},
		{" 7,00 ", 700},
		{".99", 99},
	}

	for _, tc := range cases {
		got, err := ToMinorUnits(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestToMinorUnitsMalformed(t *testing.T) {
	for _, in := range []string{"", "abc", "1,2,3", "1,2.3", "12x"} {
		_, err := ToMinorUnits(in)
		require.Error(t, err, in)
	}
}

func TestFromFloat(t *testing.T) {
	require.Equal(t, int64(50), FromFloat(0.50))
	require.Equal(t, int64(1234), FromFloat(12.34))
	require.Equal(t, int64(100), FromFloat(0.999))
	require.Equal(t, int64(-325), FromFloat(-3.25))
	require.Equal(t, int64(0), FromFloat(0))
}

func TestFormatDisplay(t *testing.T) {
	require.Equal(t, "0,50", FormatDisplay(50))
	require.Equal(t, "12,34", FormatDisplay(1234))
	require.Equal(t, "0,00", FormatDisplay(0))
	require.Equal(t, "-1,50", FormatDisplay(-150))
	require.Equal(t, "100,05", FormatDisplay(10005))
}

func TestDisplayRoundTrip(t *testing.T) {
	for _, c := range []int64{0, 1, 9, 50, 99, 100, 101, 1234, 99999, 1000000} {
		got, err := ToMinorUnits(FormatDisplay(c))
		require.NoError(t, err)
		require.Equal(t, c, got)
	}
}
