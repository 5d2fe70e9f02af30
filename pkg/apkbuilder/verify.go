package apkbuilder

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/yingcaihuang/web-to-app/internal/logger"
	"github.com/yingcaihuang/web-to-app/pkg/apksign"
	"github.com/yingcaihuang/web-to-app/pkg/axml"
)

// Structural problems found in a built archive.
var (
	ErrTableNotFirst    = errors.New("resources.arsc is not the first entry")
	ErrTableCompressed  = errors.New("resources.arsc is not stored")
	ErrTableMisaligned  = errors.New("resources.arsc data is not 4-byte aligned")
	ErrDuplicateEntry   = errors.New("duplicate entry")
	ErrIdentityMismatch = errors.New("manifest identity mismatch")
	ErrSignatureInvalid = errors.New("signature does not verify")
	ErrManifestMissing  = errors.New("AndroidManifest.xml missing")
)

// Verify checks a built archive the way an installer would: entry layout,
// manifest identity against cfg and both signature schemes. All problems are
// returned joined.
func Verify(ctx context.Context, apkPath string, cfg *BuildConfig) error {
	data, err := os.ReadFile(apkPath)
	if err != nil {
		return fmt.Errorf("read built archive: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open built archive: %w", err)
	}

	errs := checkLayout(zr)

	if err := checkIdentity(zr, cfg); err != nil {
		errs = append(errs, err)
	}

	info, err := apksign.InspectBytes(data)
	switch {
	case err != nil:
		errs = append(errs, err)
	case !info.Verified():
		errs = append(errs, fmt.Errorf("%w: v1: %v, v2: %v", ErrSignatureInvalid, info.V1Error, info.V2Error))
	}

	logLauncherIcons(ctx, zr)

	return errors.Join(errs...)
}

func checkLayout(zr *zip.Reader) []error {
	var errs []error

	if len(zr.File) == 0 || zr.File[0].Name != tableEntryName {
		errs = append(errs, ErrTableNotFirst)
	} else {
		t := zr.File[0]
		if t.Method != zip.Store {
			errs = append(errs, ErrTableCompressed)
		}
		off, err := t.DataOffset()
		if err != nil {
			errs = append(errs, err)
		} else if off%storedAlignment != 0 {
			errs = append(errs, fmt.Errorf("%w: offset %d", ErrTableMisaligned, off))
		}
	}

	seen := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateEntry, f.Name))
		}
		seen[f.Name] = true
	}

	return errs
}

func checkIdentity(zr *zip.Reader, cfg *BuildConfig) error {
	var mf *zip.File
	for _, f := range zr.File {
		if f.Name == manifestEntryName {
			mf = f

			break
		}
	}
	if mf == nil {
		return ErrManifestMissing
	}

	data, err := readEntry(mf)
	if err != nil {
		return err
	}

	m, err := axml.Inspect(data)
	if err != nil {
		return fmt.Errorf("inspect manifest: %w", err)
	}

	if m.Package != cfg.PackageName || m.VersionCode != cfg.VersionCode || m.VersionName != cfg.VersionName {
		return fmt.Errorf("%w: got %s %d %q, want %s %d %q", ErrIdentityMismatch,
			m.Package, m.VersionCode, m.VersionName, cfg.PackageName, cfg.VersionCode, cfg.VersionName)
	}

	return nil
}

func logLauncherIcons(ctx context.Context, zr *zip.Reader) {
	var found []string
	for _, f := range zr.File {
		if isLauncherIcon(f.Name) && strings.HasSuffix(f.Name, ".png") {
			found = append(found, f.Name)
		}
	}
	if len(found) == 0 {
		logger.Warnf(ctx, "built archive has no launcher icon PNGs")

		return
	}
	logger.DebugKV(ctx, "launcher icons in built archive", "count", len(found))
}
