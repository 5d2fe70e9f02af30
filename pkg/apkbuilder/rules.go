package apkbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yingcaihuang/web-to-app/internal/logger"
	"github.com/yingcaihuang/web-to-app/pkg/arsc"
	"github.com/yingcaihuang/web-to-app/pkg/axml"
)

const (
	manifestEntryName = "AndroidManifest.xml"
	tableEntryName    = "resources.arsc"
)

// rule is one step of the entry classification chain. The first rule whose
// match returns true handles the entry.
type rule struct {
	name  string
	match func(r *rewriter, name string) bool
	apply func(ctx context.Context, r *rewriter, name string, data []byte) error
}

// rules is evaluated once per template entry, in order.
var rules = []rule{
	{name: "signature", match: matchSignature, apply: dropEntry},
	{name: "stale-payload", match: matchStalePayload, apply: dropEntry},
	{name: "manifest", match: matchName(manifestEntryName), apply: applyManifest},
	{name: "resource-table", match: matchName(tableEntryName), apply: applyTable},
	{name: "adaptive-icon", match: matchAdaptiveIcon, apply: dropEntry},
	{name: "launcher-icon", match: matchLauncherIcon, apply: applyLauncherIcon},
	{name: "app-config", match: matchName(ConfigEntryName), apply: applyConfig},
	{name: "copy", match: func(*rewriter, string) bool { return true }, apply: applyCopy},
}

func classify(r *rewriter, name string) rule {
	for _, rl := range rules {
		if rl.match(r, name) {
			return rl
		}
	}

	return rules[len(rules)-1]
}

func matchName(want string) func(*rewriter, string) bool {
	return func(_ *rewriter, name string) bool { return name == want }
}

// matchSignature matches v1 signature files directly under META-INF.
func matchSignature(_ *rewriter, name string) bool {
	rest, ok := strings.CutPrefix(name, "META-INF/")
	if !ok || strings.Contains(rest, "/") {
		return false
	}
	if rest == "MANIFEST.MF" {
		return true
	}

	upper := strings.ToUpper(rest)
	for _, ext := range []string{".SF", ".RSA", ".DSA", ".EC"} {
		if strings.HasSuffix(upper, ext) {
			return true
		}
	}

	return false
}

func matchStalePayload(_ *rewriter, name string) bool {
	for _, p := range stalePayloadPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}

	return false
}

func matchAdaptiveIcon(r *rewriter, name string) bool {
	return r.icons != nil && isAdaptiveIconResource(name)
}

func matchLauncherIcon(r *rewriter, name string) bool {
	return r.icons != nil && isLauncherIcon(name)
}

func dropEntry(ctx context.Context, _ *rewriter, name string, _ []byte) error {
	logger.Debugf(ctx, "dropped %s", name)

	return nil
}

func applyManifest(ctx context.Context, r *rewriter, name string, data []byte) error {
	out, err := r.manifest.PatchPackageName(data, r.cfg.PackageName)
	if err != nil {
		return manifestError("patch package name", err)
	}

	out, err = r.manifest.PatchVersion(out, r.cfg.VersionCode, r.cfg.VersionName)
	if err != nil {
		return manifestError("patch version", err)
	}

	logger.InfoKV(ctx, "manifest patched",
		"package", r.cfg.PackageName, "versionCode", r.cfg.VersionCode, "versionName", r.cfg.VersionName)

	return r.writeDeflated(name, out)
}

func manifestError(op string, err error) error {
	if errors.Is(err, axml.ErrNameTooLong) || errors.Is(err, axml.ErrInvalidName) {
		return newError(KindConfigInvalid, op, err)
	}

	return newError(KindInternal, op, err)
}

func applyTable(ctx context.Context, r *rewriter, name string, data []byte) error {
	out, res, err := arsc.RenameApp(ctx, data, r.templateName, r.cfg.AppName)
	if err != nil {
		// The old name stays visible; the build goes on.
		logger.ErrorKV(ctx, "app name not replaced", "error", err)
		r.warn(newError(KindResourceRenameFailure, "rename app", err))
		out = data
	} else {
		logger.InfoKV(ctx, "app name replaced",
			"strategy", res.Strategy, "encoding", res.Encoding, "replacements", res.Total())
	}

	out, n := arsc.RewriteIconPaths(ctx, out)
	logger.DebugKV(ctx, "icon paths rewritten", "count", n)

	if _, err := r.out.stored(name, out); err != nil {
		return newError(KindWriteFailure, "write resource table", err)
	}

	return nil
}

func applyLauncherIcon(ctx context.Context, r *rewriter, name string, _ []byte) error {
	v := launcherVariant(name)

	data, err := r.icons.png(v)
	if err != nil {
		return newError(KindInternal, "render icon", err)
	}

	if err := r.writeDeflated(name, data); err != nil {
		return err
	}
	r.replacedIcons = append(r.replacedIcons, name)
	logger.DebugKV(ctx, "launcher icon replaced", "path", name, "size", v.Size, "shape", v.Shape)

	return nil
}

func applyConfig(ctx context.Context, r *rewriter, _ string, _ []byte) error {
	r.hadConfig = true

	return r.writeConfig(ctx)
}

func applyCopy(_ context.Context, r *rewriter, name string, data []byte) error {
	return r.writeDeflated(name, data)
}

func (r *rewriter) writeDeflated(name string, data []byte) error {
	if _, err := r.out.deflated(name, data); err != nil {
		return newError(KindWriteFailure, fmt.Sprintf("write %s", name), err)
	}

	return nil
}

func (r *rewriter) writeConfig(ctx context.Context) error {
	data, err := marshalShellConfig(r.cfg, r.tracks)
	if err != nil {
		return newError(KindInternal, "app config", err)
	}
	logger.DebugKV(ctx, "app config written", "bytes", len(data))

	return r.writeDeflated(ConfigEntryName, data)
}
