package axml

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Chunk types.
const (
	typeStringPool   = 0x0001
	typeXML          = 0x0003
	typeStartElement = 0x0102
	typeEndElement   = 0x0103
	typeResourceMap  = 0x0180
)

// Typed value data types.
const (
	typeString = 0x03
	typeIntDec = 0x10
)

const (
	chunkHeaderSize = 8
	// noEntry marks an unset string reference.
	noEntry = 0xFFFFFFFF
)

var (
	// ErrMalformed is returned for documents that cannot be parsed.
	ErrMalformed = errors.New("malformed binary xml")
	// ErrNameTooLong is returned when a value cannot be stored without truncation.
	ErrNameTooLong = errors.New("name too long")
	// ErrInvalidName is returned for empty or otherwise unusable values.
	ErrInvalidName = errors.New("invalid name")
	// ErrAttributeNotFound is returned when a required attribute is absent.
	ErrAttributeNotFound = errors.New("attribute not found")
)

var le = binary.LittleEndian

type chunkHeader struct {
	typ        uint16
	headerSize uint16
	size       uint32
}

func readChunkHeader(b []byte, off int) (chunkHeader, error) {
	if off < 0 || off+chunkHeaderSize > len(b) {
		return chunkHeader{}, fmt.Errorf("%w: chunk header at %d out of range", ErrMalformed, off)
	}

	h := chunkHeader{
		typ:        le.Uint16(b[off:]),
		headerSize: le.Uint16(b[off+2:]),
		size:       le.Uint32(b[off+4:]),
	}
	if h.size < chunkHeaderSize || int(h.headerSize) > int(h.size) || uint64(off)+uint64(h.size) > uint64(len(b)) {
		return chunkHeader{}, fmt.Errorf("%w: chunk 0x%04x at %d has size %d", ErrMalformed, h.typ, off, h.size)
	}

	return h, nil
}
