package axml

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

const (
	flagSorted     = 1 << 0
	flagUTF8       = 1 << 8
	poolHeaderSize = 28
	// maxPoolLength is the largest length either pool encoding stores in its
	// short prefix form.
	maxPoolLength = 0x7FFF
)

// stringPool keeps every string as its original encoded record (length
// prefix through terminator) so unmodified pools serialize unchanged.
type stringPool struct {
	headerSize   uint16
	flags        uint32
	records      [][]byte
	styleOffsets []uint32
	styles       []byte
}

func (p *stringPool) utf8() bool { return p.flags&flagUTF8 != 0 }

func parsePool(chunk []byte) (*stringPool, error) {
	h, err := readChunkHeader(chunk, 0)
	if err != nil {
		return nil, err
	}
	if h.typ != typeStringPool || h.headerSize < poolHeaderSize {
		return nil, fmt.Errorf("%w: not a string pool", ErrMalformed)
	}

	count := int(le.Uint32(chunk[8:]))
	styleCount := int(le.Uint32(chunk[12:]))
	p := &stringPool{
		headerSize: h.headerSize,
		flags:      le.Uint32(chunk[16:]),
	}
	stringsStart := int(le.Uint32(chunk[20:]))
	stylesStart := int(le.Uint32(chunk[24:]))

	offsets := int(h.headerSize)
	if offsets+4*(count+styleCount) > len(chunk) {
		return nil, fmt.Errorf("%w: string pool offsets exceed chunk", ErrMalformed)
	}

	p.records = make([][]byte, count)
	for i := range count {
		start := stringsStart + int(le.Uint32(chunk[offsets+4*i:]))
		rec, err := p.recordAt(chunk, start)
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		p.records[i] = bytes.Clone(rec)
	}

	if styleCount > 0 {
		if stylesStart <= 0 || stylesStart > len(chunk) {
			return nil, fmt.Errorf("%w: styles start %d", ErrMalformed, stylesStart)
		}
		p.styleOffsets = make([]uint32, styleCount)
		for i := range styleCount {
			p.styleOffsets[i] = le.Uint32(chunk[offsets+4*(count+i):])
		}
		p.styles = bytes.Clone(chunk[stylesStart:])
	}

	return p, nil
}

// recordAt returns the encoded record starting at off.
func (p *stringPool) recordAt(chunk []byte, off int) ([]byte, error) {
	if off < 0 || off >= len(chunk) {
		return nil, fmt.Errorf("%w: string offset %d", ErrMalformed, off)
	}

	var end int
	if p.utf8() {
		_, n1 := decodeLen8(chunk[off:])
		if off+n1 >= len(chunk) {
			return nil, fmt.Errorf("%w: string at %d overruns pool", ErrMalformed, off)
		}
		byteLen, n2 := decodeLen8(chunk[off+n1:])
		end = off + n1 + n2 + byteLen + 1
	} else {
		units, n := decodeLen16(chunk[off:])
		end = off + n + 2*units + 2
	}
	if end > len(chunk) {
		return nil, fmt.Errorf("%w: string at %d overruns pool", ErrMalformed, off)
	}

	return chunk[off:end], nil
}

func (p *stringPool) len() int { return len(p.records) }

// get decodes string i. Out-of-range indices yield "".
func (p *stringPool) get(i uint32) string {
	if i == noEntry || int(i) >= len(p.records) {
		return ""
	}
	rec := p.records[i]

	if p.utf8() {
		_, n1 := decodeLen8(rec)
		byteLen, n2 := decodeLen8(rec[n1:])

		return string(rec[n1+n2 : n1+n2+byteLen])
	}

	units, n := decodeLen16(rec)
	s, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(rec[n : n+2*units])
	if err != nil {
		return ""
	}

	return string(s)
}

// add returns the index of s, appending it if the pool does not hold it yet.
func (p *stringPool) add(s string) (uint32, error) {
	for i := range p.records {
		if p.get(uint32(i)) == s {
			return uint32(i), nil
		}
	}

	rec, err := p.encode(s)
	if err != nil {
		return 0, err
	}
	p.records = append(p.records, rec)
	p.flags &^= flagSorted

	return uint32(len(p.records) - 1), nil
}

func (p *stringPool) encode(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: %q is not valid utf-8", ErrInvalidName, s)
	}
	units := utf16Len(s)

	if p.utf8() {
		if units > maxPoolLength || len(s) > maxPoolLength {
			return nil, fmt.Errorf("%w: %d bytes exceeds pool limit", ErrNameTooLong, len(s))
		}
		rec := append(encodeLen8(units), encodeLen8(len(s))...)
		rec = append(rec, s...)

		return append(rec, 0), nil
	}

	if units > maxPoolLength {
		return nil, fmt.Errorf("%w: %d code units exceeds pool limit", ErrNameTooLong, units)
	}
	enc, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().String(s)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", s, err)
	}
	rec := le.AppendUint16(nil, uint16(units))
	rec = append(rec, enc...)

	return append(rec, 0, 0), nil
}

// bytes serializes the pool chunk, 4-byte aligned.
func (p *stringPool) bytes() []byte {
	var data []byte
	offsets := make([]uint32, len(p.records))
	for i, rec := range p.records {
		offsets[i] = uint32(len(data))
		data = append(data, rec...)
	}
	for len(data)%4 != 0 {
		data = append(data, 0)
	}

	headerSize := int(p.headerSize)
	stringsStart := headerSize + 4*(len(p.records)+len(p.styleOffsets))
	stylesStart := 0
	if len(p.styleOffsets) > 0 {
		stylesStart = stringsStart + len(data)
	}

	size := stringsStart + len(data) + len(p.styles)
	for size%4 != 0 {
		size++
	}

	out := make([]byte, headerSize, size)
	le.PutUint16(out[0:], typeStringPool)
	le.PutUint16(out[2:], p.headerSize)
	le.PutUint32(out[4:], uint32(size))
	le.PutUint32(out[8:], uint32(len(p.records)))
	le.PutUint32(out[12:], uint32(len(p.styleOffsets)))
	le.PutUint32(out[16:], p.flags)
	le.PutUint32(out[20:], uint32(stringsStart))
	le.PutUint32(out[24:], uint32(stylesStart))

	for _, o := range offsets {
		out = le.AppendUint32(out, o)
	}
	for _, o := range p.styleOffsets {
		out = le.AppendUint32(out, o)
	}
	out = append(out, data...)
	out = append(out, p.styles...)

	return append(out, make([]byte, size-len(out))...)
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}

	return n
}

func decodeLen8(b []byte) (int, int) {
	if len(b) == 0 {
		return 0, 1
	}
	if b[0]&0x80 == 0 {
		return int(b[0]), 1
	}
	if len(b) < 2 {
		return 0, 2
	}

	return int(b[0]&0x7F)<<8 | int(b[1]), 2
}

func encodeLen8(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}

	return []byte{byte(n>>8) | 0x80, byte(n)}
}

func decodeLen16(b []byte) (int, int) {
	if len(b) < 2 {
		return 0, 2
	}
	v := int(le.Uint16(b))
	if v&0x8000 == 0 {
		return v, 2
	}
	if len(b) < 4 {
		return 0, 4
	}

	return (v&0x7FFF)<<16 | int(le.Uint16(b[2:])), 4
}
