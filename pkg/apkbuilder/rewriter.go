package apkbuilder

import (
	"archive/zip"
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/yingcaihuang/web-to-app/internal/logger"
)

// rewriter holds the state of one template pass. It is never shared.
type rewriter struct {
	cfg          *BuildConfig
	manifest     ManifestPatcher
	templateName string
	hostAssets   fs.FS
	icons        *iconSynth

	out           *entryWriter
	template      map[string]bool
	hadConfig     bool
	tracks        [][]byte
	replacedIcons []string
	warnings      []*BuildError
}

func (r *rewriter) warn(e *BuildError) {
	r.warnings = append(r.warnings, e)
}

func newRewriter(cfg *BuildConfig, b *Builder, iconSrc image.Image) *rewriter {
	r := &rewriter{
		cfg:          cfg,
		manifest:     b.Manifest,
		templateName: b.TemplateAppName,
		hostAssets:   b.HostAssets,
	}
	if iconSrc != nil {
		r.icons = newIconSynth(iconSrc)
	}

	return r
}

// rewrite streams templatePath into a new archive at outPath. progress is
// called with the number of template entries handled so far.
func (r *rewriter) rewrite(ctx context.Context, templatePath, outPath string, progress func(done, total int)) error {
	zr, err := zip.OpenReader(templatePath)
	if err != nil {
		return newError(KindTemplateUnavailable, "open template", err)
	}
	defer zr.Close()

	files := orderEntries(zr.File)

	r.template = make(map[string]bool, len(files))
	for _, f := range files {
		r.template[f.Name] = true
	}
	logIconInventory(ctx, files)
	r.loadTracks(ctx)

	f, err := os.Create(outPath)
	if err != nil {
		return newError(KindWriteFailure, "create unsigned archive", err)
	}
	defer f.Close()

	r.out = newEntryWriter(ctx, f)

	for i, zf := range files {
		if err := r.handle(ctx, zf); err != nil {
			return err
		}
		if progress != nil {
			progress(i+1, len(files))
		}
	}

	if err := r.appendPayloads(ctx); err != nil {
		return err
	}

	if err := r.out.close(); err != nil {
		return newError(KindWriteFailure, "finish archive", err)
	}
	if err := f.Close(); err != nil {
		return newError(KindWriteFailure, "close unsigned archive", err)
	}

	if d := r.out.written.duplicates; len(d) > 0 {
		logger.WarnKV(ctx, "duplicate writes dropped", "count", len(d), "names", d)
	}

	return nil
}

func (r *rewriter) handle(ctx context.Context, zf *zip.File) error {
	rl := classify(r, zf.Name)
	if rl.name == "signature" || rl.name == "stale-payload" || rl.name == "adaptive-icon" {
		return rl.apply(ctx, r, zf.Name, nil)
	}

	data, err := readEntry(zf)
	if err != nil {
		return newError(KindTemplateUnavailable, "read template entry", err)
	}

	if err := rl.apply(ctx, r, zf.Name, data); err != nil {
		return asBuildError(err, KindWriteFailure, rl.name)
	}

	return nil
}

// appendPayloads writes everything the template does not carry, in fixed
// order.
func (r *rewriter) appendPayloads(ctx context.Context) error {
	if !r.hadConfig {
		logger.Debugf(ctx, "template has no %s, adding it", ConfigEntryName)
		if err := r.writeConfig(ctx); err != nil {
			return err
		}
	}

	for _, step := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"splash", r.addSplash},
		{"media", r.addMedia},
		{"bgm", r.addBGM},
		{"html", r.addHTML},
	} {
		if err := step.fn(ctx); err != nil {
			return asBuildError(err, KindWriteFailure, step.name)
		}
	}

	if r.icons == nil {
		return nil
	}

	logger.InfoKV(ctx, "custom icon applied", "replaced", len(r.replacedIcons))
	if len(r.replacedIcons) == 0 {
		if err := r.addMissingLauncherIcons(ctx); err != nil {
			return asBuildError(err, KindWriteFailure, "launcher icons")
		}
	}
	if err := r.addForegroundIcons(ctx); err != nil {
		return asBuildError(err, KindWriteFailure, "foreground icons")
	}

	return nil
}

// orderEntries puts the resource table first and keeps every other entry in
// template order.
func orderEntries(files []*zip.File) []*zip.File {
	out := make([]*zip.File, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Name == tableEntryName && out[j].Name != tableEntryName
	})

	return out
}

func logIconInventory(ctx context.Context, files []*zip.File) {
	var names []string
	for _, f := range files {
		if strings.Contains(f.Name, "ic_launcher") || strings.Contains(f.Name, "mipmap") {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	logger.DebugKV(ctx, "template icon resources", "count", len(names), "names", names)
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}

	return data, nil
}
