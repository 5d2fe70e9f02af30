package apkbuilder

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yingcaihuang/web-to-app/internal/logger"
	"github.com/yingcaihuang/web-to-app/pkg/arsc"
	"github.com/yingcaihuang/web-to-app/pkg/axml"
	"github.com/yingcaihuang/web-to-app/pkg/icon"
)

// ManifestPatcher rewrites identity fields of a compiled AndroidManifest.xml.
// Implementations must fail rather than truncate a name.
type ManifestPatcher interface {
	PatchPackageName(data []byte, name string) ([]byte, error)
	PatchVersion(data []byte, code int, name string) ([]byte, error)
}

// Signer signs the archive at unsignedPath into signedPath. On failure no
// file may be left at signedPath.
type Signer interface {
	Sign(ctx context.Context, unsignedPath, signedPath string) error
}

// Builder produces APKs from one template. A Builder may run several builds
// concurrently as long as they do not share an output file name.
type Builder struct {
	// TemplatePath is the host's own APK.
	TemplatePath string
	// TemplateAppName is the display name compiled into the template's
	// resource table. Defaults to the marker name.
	TemplateAppName string
	OutputDir       string
	// WorkDir holds per-build scratch directories. Defaults to os.TempDir.
	WorkDir string
	// LogDir receives one log file per build. Empty disables build logs.
	LogDir string

	Manifest ManifestPatcher
	Signer   Signer
	// HostAssets resolves asset:/// payload paths.
	HostAssets fs.FS
	// Now defaults to time.Now.
	Now func() time.Time
}

// BuildResult is the outcome of one build. Err is nil on success.
type BuildResult struct {
	OutputPath string
	LogPath    string
	Err        *BuildError
	// Warnings are non-fatal problems: a name that could not be replaced or
	// a failed self-check.
	Warnings []*BuildError
	// Duplicates lists entry writes dropped because the name was taken.
	Duplicates []string
	Duration   time.Duration
}

// Success reports whether the build produced a signed archive.
func (r *BuildResult) Success() bool { return r.Err == nil }

// Message is a one-line human-readable summary.
func (r *BuildResult) Message() string {
	if r.Err != nil {
		return "build failed: " + r.Err.Error()
	}
	if len(r.Warnings) > 0 {
		return fmt.Sprintf("built %s with %d warning(s)", r.OutputPath, len(r.Warnings))
	}

	return "built " + r.OutputPath
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}

	return time.Now()
}

// Build runs one build. It never panics and never returns a partially
// written archive: on fatal errors the output file is removed.
func (b *Builder) Build(ctx context.Context, cfg *BuildConfig, progress ProgressFunc) (res BuildResult) {
	start := b.now()
	p := newProgressTracker(progress)

	ctx = logger.WithName(ctx, "build")

	var closeLog func() error
	defer func() {
		if r := recover(); r != nil {
			res.Err = newError(KindInternal, "build", fmt.Errorf("panic: %v", r))
			logger.ErrorKV(ctx, "build panicked", "panic", r)
			b.removeOutput(ctx, res.OutputPath)
			res.OutputPath = ""
		}
		res.Duration = b.now().Sub(start)
		if closeLog != nil {
			_ = closeLog()
		}
	}()

	if cfg == nil {
		return b.fail(ctx, res, newError(KindConfigInvalid, "validate config",
			fmt.Errorf("%w: no config", ErrInvalidConfig)))
	}

	if b.LogDir != "" {
		bl, err := logger.NewBuildLog(b.LogDir, SanitizeFileName(cfg.AppName), start, logger.FromContext(ctx))
		if err != nil {
			logger.WarnKV(ctx, "build log unavailable", "error", err)
		} else {
			ctx = logger.ToContext(ctx, bl.Logger)
			res.LogPath = bl.Path
			closeLog = bl.Close
		}
	}

	p.report(0, "preparing")

	resolved, err := cfg.Resolve(start)
	if err != nil {
		return b.fail(ctx, res, newError(KindConfigInvalid, "validate config", err))
	}
	ctx = logger.WithKV(ctx, "package", resolved.PackageName)
	logger.InfoKV(ctx, "build started",
		"app", resolved.AppName, "type", resolved.AppType,
		"versionCode", resolved.VersionCode, "versionName", resolved.VersionName, "icon", resolved.IconPath)

	if b.Signer == nil {
		return b.fail(ctx, res, newError(KindInternal, "sign", ErrNoSigner))
	}

	workDir, err := b.makeWorkDir()
	if err != nil {
		return b.fail(ctx, res, newError(KindWriteFailure, "create work directory", err))
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.WarnKV(ctx, "work directory not removed", "dir", workDir, "error", err)
		}
	}()

	p.report(10, "checking template")

	staged := filepath.Join(workDir, "template.apk")
	if err := stageTemplate(b.TemplatePath, staged); err != nil {
		return b.fail(ctx, res, newError(KindTemplateUnavailable, "stage template", err))
	}

	p.report(20, "preparing resources")

	iconSrc := loadIcon(ctx, resolved.IconPath)

	if err := os.MkdirAll(b.OutputDir, 0o755); err != nil {
		return b.fail(ctx, res, newError(KindWriteFailure, "create output directory", err))
	}
	outPath := filepath.Join(b.OutputDir, OutputFileName(resolved.AppName, resolved.VersionName))
	b.removeOutput(ctx, outPath)
	unsigned := filepath.Join(workDir, resolved.PackageName+"_unsigned.apk")

	p.report(30, "injecting config")

	rw := newRewriter(resolved, b.withDefaults(), iconSrc)
	err = rw.rewrite(ctx, staged, unsigned, func(done, total int) {
		p.report(30+done*40/total, "processing resources")
	})
	res.Warnings = append(res.Warnings, rw.warnings...)
	if rw.out != nil {
		res.Duplicates = rw.out.written.duplicates
	}
	if err != nil {
		return b.fail(ctx, res, asBuildError(err, KindWriteFailure, "rewrite"))
	}

	p.report(70, "signing")

	if err := b.Signer.Sign(ctx, unsigned, outPath); err != nil {
		b.removeOutput(ctx, outPath)

		return b.fail(ctx, res, newError(KindSignFailure, "sign", err))
	}
	res.OutputPath = outPath

	p.report(85, "verifying")

	if err := Verify(ctx, outPath, resolved); err != nil {
		logger.ErrorKV(ctx, "self-check failed", "error", err)
		res.Warnings = append(res.Warnings, newError(KindVerifyFailure, "verify", err))
	}

	p.report(90, "cleaning up")

	logger.InfoKV(ctx, "build finished", "output", outPath, "warnings", len(res.Warnings),
		"duplicates", len(res.Duplicates))
	p.report(100, "done")

	return res
}

func (b *Builder) fail(ctx context.Context, res BuildResult, e *BuildError) BuildResult {
	logger.ErrorKV(ctx, "build failed", "kind", e.Kind, "op", e.Op, "error", e.Err)
	res.Err = e
	res.OutputPath = ""

	return res
}

func (b *Builder) removeOutput(ctx context.Context, p string) {
	if p == "" {
		return
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		logger.WarnKV(ctx, "stale output not removed", "path", p, "error", err)
	}
}

func (b *Builder) makeWorkDir() (string, error) {
	root := b.WorkDir
	if root == "" {
		root = os.TempDir()
	}

	dir := filepath.Join(root, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	return dir, nil
}

// withDefaults returns a copy of b with unset collaborators filled in.
func (b *Builder) withDefaults() *Builder {
	c := *b
	if c.TemplateAppName == "" {
		c.TemplateAppName = arsc.NameMarker.String()
	}
	if c.Manifest == nil {
		c.Manifest = axml.Patcher{}
	}

	return &c
}

// loadIcon decodes the custom icon. A missing or undecodable icon means the
// template icons are kept.
func loadIcon(ctx context.Context, p string) image.Image {
	if p == "" {
		return nil
	}

	img, err := icon.Load(strings.TrimPrefix(p, "file://"))
	if err != nil {
		logger.WarnKV(ctx, "custom icon ignored, keeping template icons", "path", p, "error", err)

		return nil
	}
	bounds := img.Bounds()
	logger.DebugKV(ctx, "custom icon loaded", "path", p, "width", bounds.Dx(), "height", bounds.Dy())

	return img
}
