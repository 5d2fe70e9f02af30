package arsc

import "strings"

// Marker describes the placeholder a template compiles as its display name:
// a visible literal followed by a run of invisible filler characters. The
// filler reserves bytes in the string pool that a later rename can use.
// Template producer and patcher must agree on these values.
type Marker struct {
	Literal string
	Filler  rune
	Run     int
}

// NameMarker is the display-name placeholder of self-produced templates.
var NameMarker = Marker{
	Literal: "WebToApp",
	Filler:  '\u200B',
	Run:     30,
}

// String returns the full placeholder, literal plus filler run.
func (m Marker) String() string {
	return m.Literal + strings.Repeat(string(m.Filler), m.Run)
}

// LiteralBytes returns the literal in enc.
func (m Marker) LiteralBytes(enc Encoding) ([]byte, error) {
	return enc.Encode(m.Literal)
}

// FillerBytes returns one filler character in enc
// (E2 80 8B for UTF8, 0B 20 for UTF16LE with the default marker).
func (m Marker) FillerBytes(enc Encoding) ([]byte, error) {
	return enc.Encode(string(m.Filler))
}
