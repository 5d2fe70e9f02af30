package arsc

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// Encoding is one of the two text encodings a string pool can use.
type Encoding int

const (
	// UTF8 is the 8-bit variable-width pool encoding (UTF8_FLAG set).
	UTF8 Encoding = iota
	// UTF16LE is the 16-bit fixed-width little-endian pool encoding.
	UTF16LE
)

// Encodings lists the supported encodings in the order they are tried.
var Encodings = []Encoding{UTF8, UTF16LE}

// ErrUnsupportedEncoding is returned for encodings other than UTF8 and UTF16LE.
var ErrUnsupportedEncoding = errors.New("unsupported string pool encoding")

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf8"
	case UTF16LE:
		return "utf16le"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Encode converts s to the encoding's byte form.
func (e Encoding) Encode(s string) ([]byte, error) {
	switch e {
	case UTF8:
		return []byte(s), nil
	case UTF16LE:
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String(s)
		if err != nil {
			return nil, fmt.Errorf("encode utf16le: %w", err)
		}
		return []byte(out), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, e)
	}
}

// Decode converts b from the encoding to a Go string.
func (e Encoding) Decode(b []byte) (string, error) {
	switch e {
	case UTF8:
		return string(b), nil
	case UTF16LE:
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("decode utf16le: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEncoding, e)
	}
}

// Fit encodes s into exactly budget bytes. Longer strings are cut at the last
// whole character that fits (a surrogate pair is one character); shorter ones
// are padded with NUL bytes, which renderers skip.
func Fit(s string, budget int, enc Encoding) ([]byte, error) {
	out := make([]byte, 0, budget)

	for _, r := range s {
		b, err := enc.Encode(string(r))
		if err != nil {
			return nil, err
		}
		if len(out)+len(b) > budget {
			break
		}
		out = append(out, b...)
	}

	return append(out, make([]byte, budget-len(out))...), nil
}

// Visible decodes a patched span and drops trailing NUL padding and marker
// filler, returning what a launcher would show.
func Visible(b []byte, enc Encoding) (string, error) {
	s, err := enc.Decode(b)
	if err != nil {
		return "", err
	}

	return strings.TrimRight(s, "\x00"+string(NameMarker.Filler)), nil
}
