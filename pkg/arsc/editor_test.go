package arsc

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustEncode(t *testing.T, enc Encoding, s string) []byte {
	t.Helper()
	b, err := enc.Encode(s)
	require.NoError(t, err)

	return b
}

// fakeTable wraps payload between bytes that look like chunk headers and
// trailing entries, returning the table and the payload offset.
func fakeTable(payload []byte) ([]byte, int) {
	head := []byte{0x02, 0x00, 0x0c, 0x00, 0x10, 0x00, 0x00, 0x00, 0x01, 0x00}
	tail := []byte{0x00, 0x00, 0x01, 0x02, 0x03, 0x04}

	out := append(append(append([]byte{}, head...), payload...), tail...)

	return out, len(head)
}

func TestRenameMarkerHeuristic(t *testing.T) {
	marker := mustEncode(t, UTF8, NameMarker.String())
	require.Len(t, marker, 8+30*3)

	table, off := fakeTable(marker)
	oldName := NameMarker.Literal + strings.Repeat(string(NameMarker.Filler), 31)

	out, res, err := RenameApp(context.Background(), table, oldName, "MyApp")
	require.NoError(t, err)
	require.Equal(t, StrategyHeuristic, res.Strategy)
	require.Equal(t, 1, res.Replacements[UTF8])
	require.Len(t, out, len(table))

	got, err := Visible(out[off:off+len(marker)], UTF8)
	require.NoError(t, err)
	require.Equal(t, "MyApp", got)
	require.Equal(t, table[:off], out[:off])
	require.Equal(t, table[off+len(marker):], out[off+len(marker):])
}

func TestRenameMarkerTruncates(t *testing.T) {
	marker := mustEncode(t, UTF8, NameMarker.String())
	table, off := fakeTable(marker)
	oldName := NameMarker.Literal + strings.Repeat(string(NameMarker.Filler), 40)

	// 98 bytes of span hold 32 three-byte characters plus two NULs.
	out, res, err := RenameApp(context.Background(), table, oldName, strings.Repeat("名", 40))
	require.NoError(t, err)
	require.Equal(t, StrategyHeuristic, res.Strategy)
	require.Len(t, out, len(table))
	require.Equal(t, []byte{0, 0}, out[off+len(marker)-2:off+len(marker)])

	got, err := Visible(out[off:off+len(marker)], UTF8)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("名", 32), got)
}

func TestRenameMarkerBothEncodings(t *testing.T) {
	u8 := mustEncode(t, UTF8, NameMarker.String())
	u16 := mustEncode(t, UTF16LE, NameMarker.String())
	table := append(append(append([]byte{}, u8...), 0x00, 0x00), u16...)

	out, res, err := RenameApp(context.Background(), table, NameMarker.Literal+"x", "Shop")
	require.NoError(t, err)
	require.Equal(t, StrategyHeuristic, res.Strategy)
	require.Equal(t, 1, res.Replacements[UTF8])
	require.Equal(t, 1, res.Replacements[UTF16LE])
	require.Equal(t, 2, res.Total())
	require.Len(t, out, len(table))

	got, err := Visible(out[len(u8)+2:], UTF16LE)
	require.NoError(t, err)
	require.Equal(t, "Shop", got)
}

func TestRenameExact(t *testing.T) {
	tests := []struct {
		name    string
		enc     Encoding
		oldName string
		newName string
		want    string
	}{
		{name: "utf8 shorter", enc: UTF8, oldName: "Old Name", newName: "New", want: "New"},
		{name: "utf8 equal", enc: UTF8, oldName: "Old Name", newName: "New Name", want: "New Name"},
		{name: "utf8 longer", enc: UTF8, oldName: "Old Name", newName: "Much Longer Name", want: "Much Lon"},
		{name: "utf16 shorter", enc: UTF16LE, oldName: "Old Name", newName: "New", want: "New"},
		{name: "utf16 longer", enc: UTF16LE, oldName: "Old", newName: "Brand", want: "Bra"},
		{name: "utf16 surrogate", enc: UTF16LE, oldName: "Old", newName: "ab😀", want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := mustEncode(t, tt.enc, tt.oldName)
			table, off := fakeTable(payload)

			out, res, err := RenameApp(context.Background(), table, tt.oldName, tt.newName)
			require.NoError(t, err)
			require.Equal(t, StrategyExact, res.Strategy)
			require.Equal(t, tt.enc, res.Encoding)
			require.Len(t, out, len(table))

			got, err := Visible(out[off:off+len(payload)], tt.enc)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRenameExactEveryOccurrence(t *testing.T) {
	name := mustEncode(t, UTF8, "Demo")
	table := bytes.Join([][]byte{name, name, name}, []byte{0x00})

	out, res, err := RenameApp(context.Background(), table, "Demo", "Prod")
	require.NoError(t, err)
	require.Equal(t, 3, res.Replacements[UTF8])
	require.Equal(t, "Prod\x00Prod\x00Prod", string(out))
}

func TestRenameNotFound(t *testing.T) {
	table, _ := fakeTable([]byte("something else"))
	orig := bytes.Clone(table)

	out, _, err := RenameApp(context.Background(), table, "Missing", "New")
	require.ErrorIs(t, err, ErrNameNotFound)
	require.Equal(t, orig, out)

	// Literal present but without filler is not a marker span.
	table, _ = fakeTable([]byte(NameMarker.Literal + "!"))
	out, _, err = RenameApp(context.Background(), table, NameMarker.String(), "New")
	require.ErrorIs(t, err, ErrNameNotFound)
	require.Equal(t, table, out)
}

func TestRenameHeuristicNeedsLiteralPrefix(t *testing.T) {
	table, _ := fakeTable(mustEncode(t, UTF8, NameMarker.String()))

	_, _, err := RenameApp(context.Background(), table, "Other App", "New")
	require.ErrorIs(t, err, ErrNameNotFound)
}

func TestFit(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		budget int
		enc    Encoding
		want   []byte
	}{
		{name: "pad utf8", s: "abc", budget: 5, enc: UTF8, want: []byte("abc\x00\x00")},
		{name: "exact utf8", s: "abcde", budget: 5, enc: UTF8, want: []byte("abcde")},
		{name: "multibyte not split", s: "aé", budget: 2, enc: UTF8, want: []byte("a\x00")},
		{name: "cjk not split", s: "名字", budget: 5, enc: UTF8, want: []byte("名\x00\x00")},
		{name: "surrogate not split", s: "a😀", budget: 4, enc: UTF16LE, want: []byte{'a', 0, 0, 0}},
		{name: "surrogate fits", s: "😀", budget: 4, enc: UTF16LE, want: []byte{0x3d, 0xd8, 0x00, 0xde}},
		{name: "empty", s: "", budget: 3, enc: UTF16LE, want: []byte{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fit(tt.s, tt.budget, tt.enc)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPaddingDistinguishable(t *testing.T) {
	short, err := Fit("ab", 6, UTF16LE)
	require.NoError(t, err)
	full, err := Fit("abc", 6, UTF16LE)
	require.NoError(t, err)
	require.Len(t, short, 6)
	require.NotEqual(t, short, full)

	s, err := Visible(short, UTF16LE)
	require.NoError(t, err)
	require.Equal(t, "ab", s)

	s, err = Visible(full, UTF16LE)
	require.NoError(t, err)
	require.Equal(t, "abc", s)
}

func TestLengthInvariant(t *testing.T) {
	names := []string{"", "A", "Medium", "A Considerably Longer Application Name", "名字很长的应用程序", "emoji 😀😀"}
	olds := []string{"Old", "Exactly Six", NameMarker.String()}

	for _, enc := range Encodings {
		for _, old := range olds {
			table, _ := fakeTable(mustEncode(t, enc, old))
			for _, n := range names {
				out, _, err := RenameApp(context.Background(), table, old, n)
				require.NoError(t, err)
				require.Len(t, out, len(table), "enc=%s old=%q new=%q", enc, old, n)
			}
		}
	}
}

func TestUnsupportedEncoding(t *testing.T) {
	_, err := Encoding(7).Encode("x")
	require.ErrorIs(t, err, ErrUnsupportedEncoding)

	_, err = Fit("x", 4, Encoding(7))
	require.ErrorIs(t, err, ErrUnsupportedEncoding)
}

func TestMarkerBytes(t *testing.T) {
	f8, err := NameMarker.FillerBytes(UTF8)
	require.NoError(t, err)
	require.Equal(t, []byte{0xe2, 0x80, 0x8b}, f8)

	f16, err := NameMarker.FillerBytes(UTF16LE)
	require.NoError(t, err)
	require.Equal(t, []byte{0x0b, 0x20}, f16)
}
