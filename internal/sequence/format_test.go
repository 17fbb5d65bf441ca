package sequence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatRender(t *testing.T) {
	cases := []struct {
		format Format
		n      int64
		want   string
	}{
		{Format{Prefix: "SU", Width: 3}, 8, "SU008"},
		{Format{Prefix: "PAY-", Width: 4}, 1, "PAY-0001"},
		{Format{Prefix: "SU", Width: 3}, 1000, "SU1000"},
		{Format{Prefix: "", Width: 2}, 0, "00"},
	}
	for _, tc := range cases {
		got, err := tc.format.Render(tc.n)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}

func TestFormatRenderRejectsNegative(t *testing.T) {
	_, err := Format{Prefix: "SU", Width: 3}.Render(-1)
	require.ErrorIs(t, err, ErrNegativeCounter)
}

func TestParseTrailingDigits(t *testing.T) {
	n, err := Parse("PAY-0042")
	require.NoError(t, err)
	require.EqualValues(t, 42, n)

	_, err = Parse("PAY-")
	require.ErrorIs(t, err, ErrMalformedIdentifier)

	_, err = Format{Prefix: "SU", Width: 3}.Parse("CU001")
	require.ErrorIs(t, err, ErrMalformedIdentifier)
}

func TestFormatParseRequiresDigitsAfterPrefix(t *testing.T) {
	f := Format{Prefix: "SU", Width: 3}
	for _, id := range []string{"SU-OLD-7", "SUX12", "SU", "SU12A", "SU 12"} {
		_, err := f.Parse(id)
		require.ErrorIs(t, err, ErrMalformedIdentifier, id)
	}

	n, err := f.Parse("SU041")
	require.NoError(t, err)
	require.EqualValues(t, 41, n)

	n, err = Format{Prefix: "PAY-", Width: 4}.Parse("PAY-12345")
	require.NoError(t, err)
	require.EqualValues(t, 12345, n)
}

func TestRenderParseRoundTrip(t *testing.T) {
	f := Format{Prefix: "PUR-", Width: 4}
	for _, last := range []string{"PUR-0000", "PUR-0009", "PUR-0999", "PUR-9999", "PUR-12345"} {
		next, err := Advance(last, true, f, MalformedFail)
		require.NoError(t, err)
		display, err := f.Render(next)
		require.NoError(t, err)
		back, err := f.Parse(display)
		require.NoError(t, err)
		require.Equal(t, next, back, "round trip of %s", display)
	}
}
