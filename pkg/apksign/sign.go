package apksign

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yingcaihuang/web-to-app/internal/logger"
)

// Signer signs unsigned archives with one identity.
type Signer struct {
	Identity *Identity
}

// NewSigner returns a Signer for id.
func NewSigner(id *Identity) *Signer {
	return &Signer{Identity: id}
}

// Sign writes a v1+v2 signed copy of unsignedPath to signedPath. Nothing is
// left at signedPath when signing fails.
func (s *Signer) Sign(ctx context.Context, unsignedPath, signedPath string) (err error) {
	if s == nil || s.Identity == nil || s.Identity.Certificate == nil || s.Identity.PrivateKey == nil {
		return errors.New("signer has no identity")
	}

	ctx = logger.WithName(ctx, "apksign")

	v1, err := s.signV1(ctx, unsignedPath)
	if err != nil {
		return err
	}

	signed, err := insertV2(v1, s.Identity)
	if err != nil {
		return fmt.Errorf("failed to add v2 signature: %w", err)
	}

	if err := writeFileAtomic(signedPath, signed); err != nil {
		return err
	}

	logger.DebugKV(ctx, "archive signed", "path", signedPath, "size", len(signed),
		"subject", s.Identity.Certificate.Subject.CommonName)

	return nil
}

// signV1 copies every entry raw and appends the JAR signature files.
func (s *Signer) signV1(ctx context.Context, unsignedPath string) ([]byte, error) {
	zr, err := zip.OpenReader(unsignedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open unsigned archive: %w", err)
	}
	defer zr.Close()

	var (
		buf     bytes.Buffer
		entries []digestedEntry
	)
	zw := zip.NewWriter(&buf)

	for _, f := range zr.File {
		if isSignatureFile(f.Name) {
			logger.DebugKV(ctx, "dropping stale signature file", "name", f.Name)

			continue
		}

		if !f.FileInfo().IsDir() {
			digest, err := digestEntry(f)
			if err != nil {
				return nil, err
			}
			entries = append(entries, digestedEntry{name: f.Name, digest: digest})
		}

		if err := zw.Copy(f); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
	}

	files, err := buildV1(entries, s.Identity)
	if err != nil {
		return nil, err
	}

	for _, e := range []struct {
		name string
		data []byte
	}{
		{manifestName, files.manifest},
		{signatureName, files.signature},
		{files.blockName, files.block},
	} {
		fh := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		fh.ModifiedDate, fh.ModifiedTime = 0x0221, 0
		w, err := zw.CreateHeader(fh)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish signed archive: %w", err)
	}

	return buf.Bytes(), nil
}

func digestEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}

	return h.Sum(nil), nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".signing-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
			_ = os.Remove(path)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write signed archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close signed archive: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move signed archive: %w", err)
	}

	return nil
}
