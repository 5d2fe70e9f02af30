package apkbuilder

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/yingcaihuang/web-to-app/internal/logger"
)

const (
	// dosDate1981 is 1981-01-01 in MS-DOS date format. Entries carry no
	// extended timestamp so rebuilt archives stay reproducible.
	dosDate1981 = 0x0221

	alignmentExtraID   = 0xD935
	storedAlignment    = 4
	localHeaderSize    = 30
	alignmentExtraBase = 6
)

// writtenSet records every entry name emitted by one build.
type writtenSet struct {
	names      map[string]struct{}
	duplicates []string
}

func newWrittenSet() *writtenSet {
	return &writtenSet{names: make(map[string]struct{})}
}

// claim reports whether name was free and marks it taken.
func (s *writtenSet) claim(name string) bool {
	if _, ok := s.names[name]; ok {
		s.duplicates = append(s.duplicates, name)

		return false
	}
	s.names[name] = struct{}{}

	return true
}

func (s *writtenSet) has(name string) bool {
	_, ok := s.names[name]

	return ok
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	return n, err
}

// entryWriter appends entries to an archive, each name at most once.
type entryWriter struct {
	cw      *countingWriter
	zw      *zip.Writer
	written *writtenSet
	ctx     context.Context //nolint:containedctx // Carries the build logger.
}

func newEntryWriter(ctx context.Context, w io.Writer) *entryWriter {
	cw := &countingWriter{w: w}

	return &entryWriter{
		cw:      cw,
		zw:      zip.NewWriter(cw),
		written: newWrittenSet(),
		ctx:     ctx,
	}
}

// stored writes data uncompressed with its payload starting on a 4-byte
// boundary. It returns false when the name was already written.
func (e *entryWriter) stored(name string, data []byte) (bool, error) {
	if !e.claim(name) {
		return false, nil
	}

	// Every entry is written raw without a data descriptor, so after a flush
	// the counter is exactly where this local header starts.
	if err := e.zw.Flush(); err != nil {
		return false, fmt.Errorf("flush before %s: %w", name, err)
	}

	fh := &zip.FileHeader{
		Name:               name,
		Method:             zip.Store,
		ModifiedDate:       dosDate1981,
		CRC32:              crc32.ChecksumIEEE(data),
		CompressedSize64:   uint64(len(data)),
		UncompressedSize64: uint64(len(data)),
		Extra:              alignmentExtra(e.cw.n, name),
	}

	w, err := e.zw.CreateRaw(fh)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return false, fmt.Errorf("write %s: %w", name, err)
	}

	return true, nil
}

// deflated writes data compressed. The payload is compressed up front so
// sizes and CRC land in the local header and no data descriptor follows.
func (e *entryWriter) deflated(name string, data []byte) (bool, error) {
	if !e.claim(name) {
		return false, nil
	}

	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return false, fmt.Errorf("compress %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return false, fmt.Errorf("compress %s: %w", name, err)
	}
	if err := fw.Close(); err != nil {
		return false, fmt.Errorf("compress %s: %w", name, err)
	}

	fh := &zip.FileHeader{
		Name:               name,
		Method:             zip.Deflate,
		ModifiedDate:       dosDate1981,
		CRC32:              crc32.ChecksumIEEE(data),
		CompressedSize64:   uint64(buf.Len()),
		UncompressedSize64: uint64(len(data)),
	}

	w, err := e.zw.CreateRaw(fh)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return false, fmt.Errorf("write %s: %w", name, err)
	}

	return true, nil
}

func (e *entryWriter) claim(name string) bool {
	if e.written.claim(name) {
		return true
	}
	logger.WarnKV(e.ctx, "duplicate entry dropped", "name", name)

	return false
}

func (e *entryWriter) close() error {
	if err := e.zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}

	return nil
}

// alignmentExtra builds the 0xD935 extra field that pads the local header so
// the entry data begins on a storedAlignment boundary. offset is where the
// local header will start.
func alignmentExtra(offset int64, name string) []byte {
	end := offset + localHeaderSize + int64(len(name)) + alignmentExtraBase
	pad := (storedAlignment - end%storedAlignment) % storedAlignment

	extra := make([]byte, alignmentExtraBase+pad)
	binary.LittleEndian.PutUint16(extra[0:], alignmentExtraID)
	binary.LittleEndian.PutUint16(extra[2:], uint16(2+pad))
	binary.LittleEndian.PutUint16(extra[4:], storedAlignment)

	return extra
}
