package apkbuilder

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yingcaihuang/web-to-app/pkg/apksign"
	"github.com/yingcaihuang/web-to-app/pkg/axml"
)

// ArchiveInfo is what Describe reads back from an APK.
type ArchiveInfo struct {
	Path     string
	Size     int64
	Entries  []EntryInfo
	Manifest *axml.Manifest
	// Config is the embedded app config, when present and readable.
	Config    *ShellConfig
	Signature *apksign.Info
	Problems  []error
}

// EntryInfo describes one archive entry.
type EntryInfo struct {
	Name           string
	Method         uint16
	Size           uint64
	CompressedSize uint64
	CRC32          uint32
	DataOffset     int64
}

func (e EntryInfo) methodName() string {
	switch e.Method {
	case zip.Store:
		return "stored"
	case zip.Deflate:
		return "deflated"
	default:
		return fmt.Sprintf("method(%d)", e.Method)
	}
}

// Describe reads entries, manifest identity, embedded config and
// signatures of the APK at path. Unreadable parts are recorded in Problems.
func Describe(path string) (*ArchiveInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	info := &ArchiveInfo{Path: path, Size: int64(len(data))}
	info.Problems = checkLayout(zr)

	for _, f := range zr.File {
		e := EntryInfo{
			Name:           f.Name,
			Method:         f.Method,
			Size:           f.UncompressedSize64,
			CompressedSize: f.CompressedSize64,
			CRC32:          f.CRC32,
		}
		if off, err := f.DataOffset(); err == nil {
			e.DataOffset = off
		}
		info.Entries = append(info.Entries, e)

		switch f.Name {
		case manifestEntryName:
			raw, err := readEntry(f)
			if err != nil {
				info.Problems = append(info.Problems, err)

				continue
			}
			m, err := axml.Inspect(raw)
			if err != nil {
				info.Problems = append(info.Problems, fmt.Errorf("manifest: %w", err))

				continue
			}
			info.Manifest = &m
		case ConfigEntryName:
			raw, err := readEntry(f)
			if err != nil {
				info.Problems = append(info.Problems, err)

				continue
			}
			var sc ShellConfig
			if err := json.Unmarshal(raw, &sc); err != nil {
				info.Problems = append(info.Problems, fmt.Errorf("app config: %w", err))

				continue
			}
			info.Config = &sc
		}
	}

	if info.Signature, err = apksign.InspectBytes(data); err != nil {
		info.Problems = append(info.Problems, err)
	}

	return info, nil
}

// PrintArchiveInfo writes a human-readable report. Entries are listed only
// when verbose is set.
func PrintArchiveInfo(info *ArchiveInfo, w io.Writer, verbose bool) {
	fprint(w, "\n=== %s ===\n", filepath.Base(info.Path))
	fprint(w, "Size:       %d bytes, %d entries\n", info.Size, len(info.Entries))

	if m := info.Manifest; m != nil {
		fprint(w, "Package:    %s\n", m.Package)
		fprint(w, "Version:    %s (%d)\n", m.VersionName, m.VersionCode)
		if len(m.Permissions) > 0 {
			fprint(w, "Permissions:\n")
			for _, p := range m.Permissions {
				fprint(w, "  %s\n", p)
			}
		}
	}

	if c := info.Config; c != nil {
		fprint(w, "\nApp Config:\n")
		fprint(w, "  Name:     %s\n", c.AppName)
		fprint(w, "  Type:     %s\n", c.AppType)
		if c.TargetURL != "" {
			fprint(w, "  Target:   %s\n", c.TargetURL)
		}
		fprint(w, "  Splash:   %t\n", c.SplashEnabled)
		fprint(w, "  BGM:      %t (%d tracks)\n", c.BGMEnabled, len(c.BGMPlaylist))
	}

	if s := info.Signature; s != nil {
		fprint(w, "\nSignature:\n")
		fprint(w, "  ├─ v1 (%s): %s\n", orNone(s.SignatureBlock), verdict(s.V1Verified, s.V1Error))
		fprint(w, "  ├─ v2: %s\n", v2Verdict(s))
		for i, c := range s.Certificates {
			prefix := "├─"
			if i == len(s.Certificates)-1 {
				prefix = "└─"
			}
			fprint(w, "  %s Signer: %s (until %s)\n", prefix, c.Subject.CommonName, c.NotAfter.Format("2006-01-02"))
		}
	}

	if verbose {
		fprint(w, "\nEntries:\n")
		for _, e := range info.Entries {
			fprint(w, "  %-9s %10d %10d  %08x  @%-8d %s\n",
				e.methodName(), e.Size, e.CompressedSize, e.CRC32, e.DataOffset, e.Name)
		}
	}

	if len(info.Problems) > 0 {
		fprint(w, "\nProblems:\n")
		for _, p := range info.Problems {
			fprint(w, "  - %v\n", p)
		}
	}
}

func verdict(ok bool, err error) string {
	switch {
	case ok:
		return "verified"
	case err != nil:
		return "FAILED: " + err.Error()
	default:
		return "not verified"
	}
}

func v2Verdict(s *apksign.Info) string {
	if !s.V2Present {
		return "absent"
	}

	return verdict(s.V2Verified, s.V2Error)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}

	return s
}

func fprint(w io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(w, format, a...)
}
