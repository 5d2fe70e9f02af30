package axml

import (
	"bytes"
	"fmt"
)

// Android framework attribute resource IDs.
const (
	attrName            = 0x01010003
	attrAuthorities     = 0x01010018
	attrTargetActivity  = 0x01010202
	attrVersionCode     = 0x0101021b
	attrVersionName     = 0x0101021c
	attrSize            = 20
	startElementExtSize = 20
)

// document is a parsed binary XML file. Chunks other than the string pool are
// kept as raw bytes and edited in place.
type document struct {
	headerSize uint16
	pool       *stringPool
	poolIndex  int
	chunks     [][]byte
	resMap     []uint32
}

func parse(data []byte) (*document, error) {
	h, err := readChunkHeader(data, 0)
	if err != nil {
		return nil, err
	}
	if h.typ != typeXML {
		return nil, fmt.Errorf("%w: root chunk type 0x%04x", ErrMalformed, h.typ)
	}

	d := &document{headerSize: h.headerSize, poolIndex: -1}
	for off := int(h.headerSize); off < int(h.size); {
		ch, err := readChunkHeader(data, off)
		if err != nil {
			return nil, err
		}
		raw := bytes.Clone(data[off : off+int(ch.size)])

		switch ch.typ {
		case typeStringPool:
			if d.pool != nil {
				return nil, fmt.Errorf("%w: duplicate string pool", ErrMalformed)
			}
			if d.pool, err = parsePool(raw); err != nil {
				return nil, err
			}
			d.poolIndex = len(d.chunks)
		case typeResourceMap:
			for i := int(ch.headerSize); i+4 <= len(raw); i += 4 {
				d.resMap = append(d.resMap, le.Uint32(raw[i:]))
			}
		case typeStartElement:
			if len(raw) < 16+startElementExtSize {
				return nil, fmt.Errorf("%w: short start element at %d", ErrMalformed, off)
			}
		}

		d.chunks = append(d.chunks, raw)
		off += int(ch.size)
	}

	if d.pool == nil {
		return nil, fmt.Errorf("%w: no string pool", ErrMalformed)
	}

	return d, nil
}

func (d *document) bytes() []byte {
	out := make([]byte, d.headerSize)
	le.PutUint16(out[0:], typeXML)
	le.PutUint16(out[2:], d.headerSize)

	for i, c := range d.chunks {
		if i == d.poolIndex {
			c = d.pool.bytes()
		}
		out = append(out, c...)
	}
	le.PutUint32(out[4:], uint32(len(out)))

	return out
}

// element is a view over one START_ELEMENT chunk.
type element struct {
	doc   *document
	chunk []byte
}

// attribute is a view over one 20-byte attribute record.
type attribute []byte

func (a attribute) name() uint32     { return le.Uint32(a[4:]) }
func (a attribute) rawValue() uint32 { return le.Uint32(a[8:]) }
func (a attribute) dataType() uint8  { return a[15] }
func (a attribute) data() uint32     { return le.Uint32(a[16:]) }

func (a attribute) setString(idx uint32) {
	le.PutUint32(a[8:], idx)
	le.PutUint16(a[12:], 8)
	a[14] = 0
	a[15] = typeString
	le.PutUint32(a[16:], idx)
}

func (a attribute) setInt(v uint32) {
	le.PutUint32(a[8:], noEntry)
	le.PutUint16(a[12:], 8)
	a[14] = 0
	a[15] = typeIntDec
	le.PutUint32(a[16:], v)
}

func (d *document) elements() []element {
	var out []element
	for _, c := range d.chunks {
		if le.Uint16(c) == typeStartElement {
			out = append(out, element{doc: d, chunk: c})
		}
	}

	return out
}

func (e element) name() string {
	return e.doc.pool.get(le.Uint32(e.chunk[20:]))
}

func (e element) attrs() []attribute {
	ext := 16
	start := ext + int(le.Uint16(e.chunk[ext+8:]))
	size := int(le.Uint16(e.chunk[ext+10:]))
	count := int(le.Uint16(e.chunk[ext+12:]))
	if size < attrSize {
		return nil
	}

	out := make([]attribute, 0, count)
	for i := range count {
		off := start + i*size
		if off+attrSize > len(e.chunk) {
			break
		}
		out = append(out, attribute(e.chunk[off:off+attrSize]))
	}

	return out
}

// attr finds an attribute by framework resource ID, falling back to its name
// for attributes outside the android namespace (resID 0).
func (e element) attr(name string, resID uint32) (attribute, bool) {
	for _, a := range e.attrs() {
		idx := a.name()
		if resID != 0 && int(idx) < len(e.doc.resMap) {
			if e.doc.resMap[idx] == resID {
				return a, true
			}

			continue
		}
		if e.doc.pool.get(idx) == name {
			return a, true
		}
	}

	return nil, false
}

// stringValue returns the attribute's string, or "" for non-string values.
func (e element) stringValue(a attribute) (string, bool) {
	if a.dataType() == typeString {
		return e.doc.pool.get(a.data()), true
	}
	if a.rawValue() != noEntry {
		return e.doc.pool.get(a.rawValue()), true
	}

	return "", false
}

func (d *document) manifest() (element, error) {
	for _, e := range d.elements() {
		if e.name() == "manifest" {
			return e, nil
		}
	}

	return element{}, fmt.Errorf("%w: no <manifest> element", ErrMalformed)
}
