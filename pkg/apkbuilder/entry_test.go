package apkbuilder

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntryWriterAlignsStoredEntries(t *testing.T) {
	var buf bytes.Buffer
	ew := newEntryWriter(context.Background(), &buf)

	names := []string{"a", "resources.arsc", "assets/x.bin", "odd-name-length.txt", "assets/bgm/bgm_0.mp3"}
	for i, n := range names {
		data := bytes.Repeat([]byte{byte(i)}, 3+i*7)
		if i%2 == 0 {
			ok, err := ew.stored(n, data)
			require.NoError(t, err)
			require.True(t, ok)
		} else {
			ok, err := ew.deflated(n, data)
			require.NoError(t, err)
			require.True(t, ok)
		}
	}
	require.NoError(t, ew.close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, len(names))

	for i, f := range zr.File {
		require.Equal(t, names[i], f.Name)
		require.Equal(t, uint16(dosDate1981), f.ModifiedDate)
		if f.Method != zip.Store {
			continue
		}
		off, err := f.DataOffset()
		require.NoError(t, err)
		require.Zero(t, off%storedAlignment, "%s at %d", f.Name, off)
	}
}

func TestEntryWriterAlignsStoredAfterDeflated(t *testing.T) {
	for _, size := range []int{0, 1, 5, 97, 4096, 70000} {
		var buf bytes.Buffer
		ew := newEntryWriter(context.Background(), &buf)

		_, err := ew.stored("resources.arsc", []byte("table"))
		require.NoError(t, err)
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i * 31)
		}
		_, err = ew.deflated("classes.dex", payload)
		require.NoError(t, err)
		_, err = ew.stored("assets/splash_media.png", []byte("png"))
		require.NoError(t, err)
		require.NoError(t, ew.close())

		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		require.NoError(t, err)
		require.Len(t, zr.File, 3)

		for _, f := range zr.File {
			require.Zero(t, f.Flags&0x8, "%s has a data descriptor", f.Name)
			if f.Method == zip.Store {
				off, err := f.DataOffset()
				require.NoError(t, err)
				require.Zero(t, off%storedAlignment, "size %d: %s at %d", size, f.Name, off)
			}
		}

		rc, err := zr.File[1].Open()
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		require.Equal(t, payload, got)
	}
}

func TestEntryWriterDropsDuplicates(t *testing.T) {
	var buf bytes.Buffer
	ew := newEntryWriter(context.Background(), &buf)

	ok, err := ew.deflated("assets/app_config.json", []byte("first"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ew.stored("assets/app_config.json", []byte("second"))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = ew.deflated("assets/app_config.json", []byte("third"))
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, ew.close())

	require.Equal(t, []string{"assets/app_config.json", "assets/app_config.json"}, ew.written.duplicates)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "first", string(got))
}

func TestAlignmentExtra(t *testing.T) {
	for offset := int64(0); offset < 8; offset++ {
		extra := alignmentExtra(offset, "resources.arsc")
		require.Equal(t, []byte{0x35, 0xd9}, extra[:2])
		require.Equal(t, byte(storedAlignment), extra[4])

		dataStart := offset + localHeaderSize + int64(len("resources.arsc")) + int64(len(extra))
		require.Zero(t, dataStart%storedAlignment, "offset %d", offset)
		require.Equal(t, len(extra)-4, int(extra[2]))
	}
}
