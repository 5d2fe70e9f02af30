package apkbuilder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	apkExt            = ".apk"
	maxFileNameLength = 50
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_\-\p{Han}]`)

// ErrNotBuiltAPK is returned when asked to delete something outside the
// output directory or not an APK.
var ErrNotBuiltAPK = errors.New("not a built apk")

// SanitizeFileName replaces everything but ASCII letters, digits, '_', '-'
// and Han characters with '_' and caps the result at 50 characters. Output
// archives and build logs are named with it.
func SanitizeFileName(name string) string {
	r := []rune(unsafeFileChars.ReplaceAllString(name, "_"))
	if len(r) > maxFileNameLength {
		r = r[:maxFileNameLength]
	}

	return string(r)
}

// OutputFileName is the signed archive name for an app and version.
func OutputFileName(appName, versionName string) string {
	return fmt.Sprintf("%s_v%s%s", SanitizeFileName(appName), versionName, apkExt)
}

// BuiltAPK describes one archive in the output directory.
type BuiltAPK struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ListBuilt returns the archives in dir, newest first. A missing directory
// holds no archives.
func ListBuilt(dir string) ([]BuiltAPK, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var out []BuiltAPK
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), apkExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BuiltAPK{
			Path:    filepath.Join(dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })

	return out, nil
}

// DeleteBuilt removes one archive from dir. name may be a bare file name or
// a path inside dir.
func DeleteBuilt(dir, name string) error {
	p := name
	if !filepath.IsAbs(p) && filepath.Dir(p) == "." {
		p = filepath.Join(dir, p)
	}

	rel, err := filepath.Rel(dir, p)
	if err != nil || rel != filepath.Base(p) || !strings.EqualFold(filepath.Ext(p), apkExt) {
		return fmt.Errorf("%w: %s", ErrNotBuiltAPK, name)
	}

	if err := os.Remove(p); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}

	return nil
}

// ClearAll empties the output directory and the build work directory.
func ClearAll(outputDir, workDir string) error {
	var errs []error
	for _, dir := range []string{outputDir, workDir} {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)

			continue
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}
