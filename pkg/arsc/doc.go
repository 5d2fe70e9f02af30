// Package arsc patches strings inside a compiled Android resource table
// (resources.arsc) without changing its length.
//
// The table's string pool stores length-prefixed strings addressed by byte
// offsets, so every edit here is an in-place byte substitution of exactly the
// same size. Two string populations are handled: the application display name
// and the file paths of adaptive icon foreground layers.
//
// Templates reserve room for the display name by compiling it as a short
// literal followed by a run of zero-width spaces (see NameMarker). The patcher
// finds that span in either pool encoding and overwrites it with the new name,
// truncated on a character boundary or padded with NUL bytes.
package arsc
