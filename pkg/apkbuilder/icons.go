package apkbuilder

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/yingcaihuang/web-to-app/internal/logger"
	"github.com/yingcaihuang/web-to-app/pkg/icon"
)

var launcherDensities = []string{"mdpi", "hdpi", "xhdpi", "xxhdpi", "xxxhdpi"}

// launcherIcons lists the plain and round launcher PNGs a template may carry,
// in -v4 and unqualified directories.
var launcherIcons = func() []icon.Variant {
	var out []icon.Variant
	for _, shape := range []icon.Shape{icon.ShapePlain, icon.ShapeRound} {
		file := "ic_launcher.png"
		if shape == icon.ShapeRound {
			file = "ic_launcher_round.png"
		}
		for _, suffix := range []string{"-v4", ""} {
			for _, d := range launcherDensities {
				size, _ := icon.DensitySize(d)
				out = append(out, icon.Variant{
					Path:  "res/mipmap-" + d + suffix + "/" + file,
					Size:  size,
					Shape: shape,
				})
			}
		}
	}

	return out
}()

// foregroundBases are every resource path a launcher may resolve the adaptive
// foreground layer from, without extension.
var foregroundBases = []string{
	"res/drawable/ic_launcher_foreground",
	"res/drawable-v24/ic_launcher_foreground",
	"res/drawable-anydpi-v24/ic_launcher_foreground",
	"res/mipmap-mdpi/ic_launcher_foreground",
	"res/mipmap-hdpi/ic_launcher_foreground",
	"res/mipmap-xhdpi/ic_launcher_foreground",
	"res/mipmap-xxhdpi/ic_launcher_foreground",
	"res/mipmap-xxxhdpi/ic_launcher_foreground",
	"res/mipmap-anydpi-v26/ic_launcher_foreground",
}

var launcherPatterns = []string{"ic_launcher.png", "ic_launcher_round.png", "ic_launcher_foreground.png"}

func knownLauncherIcon(name string) (icon.Variant, bool) {
	for _, v := range launcherIcons {
		if v.Path == name {
			return v, true
		}
	}

	return icon.Variant{}, false
}

// isAdaptiveIconResource matches entries removed when a custom icon is used,
// so every launcher falls back to the generated PNGs.
func isAdaptiveIconResource(name string) bool {
	if strings.HasPrefix(name, "res/mipmap-anydpi-v26/") {
		for _, suffix := range []string{"ic_launcher.xml", "ic_launcher_round.xml", "ic_launcher.png", "ic_launcher_round.png"} {
			if strings.HasSuffix(name, suffix) {
				return true
			}
		}
	}

	if (strings.HasPrefix(name, "res/drawable") || strings.HasPrefix(name, "res/mipmap")) &&
		(strings.Contains(name, "ic_launcher_foreground") || strings.Contains(name, "ic_launcher_background")) {
		return true
	}

	return strings.HasPrefix(name, "res/values/") && strings.Contains(name, "ic_launcher_background")
}

// isLauncherIcon matches launcher PNGs, exactly or by file name inside a
// mipmap or drawable directory. Background layers never match.
func isLauncherIcon(name string) bool {
	if _, ok := knownLauncherIcon(name); ok {
		return true
	}

	if !strings.Contains(name, "mipmap") && !strings.Contains(name, "drawable") {
		return false
	}
	for _, p := range launcherPatterns {
		if strings.HasSuffix(name, p) {
			return true
		}
	}

	return false
}

// launcherVariant decides size and shape for a launcher icon entry.
func launcherVariant(name string) icon.Variant {
	if v, ok := knownLauncherIcon(name); ok {
		return v
	}

	v := icon.Variant{Path: name, Size: icon.SizeForPath(name)}
	// "foreground" contains "round", so it is checked first.
	switch {
	case strings.Contains(name, "foreground"):
		v.Shape = icon.ShapeForeground
	case strings.Contains(name, "round"):
		v.Shape = icon.ShapeRound
	}

	return v
}

// iconSynth renders custom icon variants once per (size, shape).
type iconSynth struct {
	src   image.Image
	cache map[icon.Variant][]byte
}

func newIconSynth(src image.Image) *iconSynth {
	return &iconSynth{src: src, cache: make(map[icon.Variant][]byte)}
}

func (s *iconSynth) png(v icon.Variant) ([]byte, error) {
	key := icon.Variant{Size: v.Size, Shape: v.Shape}
	if data, ok := s.cache[key]; ok {
		return data, nil
	}

	data, err := icon.RenderPNG(s.src, v)
	if err != nil {
		return nil, fmt.Errorf("render %s icon %dpx: %w", v.Shape, v.Size, err)
	}
	s.cache[key] = data

	return data, nil
}

// addMissingLauncherIcons writes the plain and round matrix for paths the
// template did not have.
func (r *rewriter) addMissingLauncherIcons(ctx context.Context) error {
	for _, v := range launcherIcons {
		if r.template[v.Path] {
			logger.Debugf(ctx, "launcher icon %s already in template", v.Path)

			continue
		}

		data, err := r.icons.png(v)
		if err != nil {
			return err
		}
		if _, err := r.out.deflated(v.Path, data); err != nil {
			return err
		}
		logger.DebugKV(ctx, "launcher icon added", "path", v.Path, "size", v.Size, "shape", v.Shape)
	}

	return nil
}

// addForegroundIcons writes the adaptive foreground PNG at every base path.
func (r *rewriter) addForegroundIcons(ctx context.Context) error {
	v := icon.Variant{Size: icon.ForegroundSize, Shape: icon.ShapeForeground}

	data, err := r.icons.png(v)
	if err != nil {
		return err
	}

	for _, base := range foregroundBases {
		path := base + ".png"
		if r.out.written.has(path) {
			logger.Debugf(ctx, "foreground %s already written", path)

			continue
		}
		if _, err := r.out.deflated(path, data); err != nil {
			return err
		}
		logger.DebugKV(ctx, "foreground icon added", "path", path)
	}

	return nil
}
