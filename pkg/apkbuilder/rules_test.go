package apkbuilder

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yingcaihuang/web-to-app/pkg/icon"
)

func TestClassify(t *testing.T) {
	plain := &rewriter{}
	custom := &rewriter{icons: newIconSynth(image.NewRGBA(image.Rect(0, 0, 4, 4)))}

	tests := []struct {
		name       string
		plain      string
		customIcon string
	}{
		{"META-INF/MANIFEST.MF", "signature", "signature"},
		{"META-INF/CERT.SF", "signature", "signature"},
		{"META-INF/KEY.rsa", "signature", "signature"},
		{"META-INF/ANDROIDD.EC", "signature", "signature"},
		{"META-INF/services/x.RSA", "copy", "copy"},
		{"META-INF/androidx.core_core.version", "copy", "copy"},
		{"assets/splash_media.mp4", "stale-payload", "stale-payload"},
		{"assets/media_content.png", "stale-payload", "stale-payload"},
		{"assets/bgm/bgm_0.lrc", "stale-payload", "stale-payload"},
		{"assets/html/index.html", "stale-payload", "stale-payload"},
		{"AndroidManifest.xml", "manifest", "manifest"},
		{"resources.arsc", "resource-table", "resource-table"},
		{"res/mipmap-anydpi-v26/ic_launcher.xml", "copy", "adaptive-icon"},
		{"res/drawable-v24/ic_launcher_foreground.xml", "copy", "adaptive-icon"},
		{"res/mipmap-xhdpi/ic_launcher_foreground.png", "copy", "adaptive-icon"},
		{"res/values/ic_launcher_background.xml", "copy", "adaptive-icon"},
		{"res/mipmap-xxxhdpi-v4/ic_launcher.png", "copy", "launcher-icon"},
		{"res/drawable-ldpi/ic_launcher_round.png", "copy", "launcher-icon"},
		{"res/raw/ic_launcher.png", "copy", "copy"},
		{"assets/app_config.json", "app-config", "app-config"},
		{"classes.dex", "copy", "copy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.plain, classify(plain, tt.name).name)
			require.Equal(t, tt.customIcon, classify(custom, tt.name).name)
		})
	}
}

func TestLauncherVariant(t *testing.T) {
	require.Equal(t, icon.Variant{Path: "res/mipmap-mdpi-v4/ic_launcher_round.png", Size: 48, Shape: icon.ShapeRound},
		launcherVariant("res/mipmap-mdpi-v4/ic_launcher_round.png"))
	require.Equal(t, icon.Variant{Path: "res/drawable-ldpi/ic_launcher.png", Size: 36, Shape: icon.ShapePlain},
		launcherVariant("res/drawable-ldpi/ic_launcher.png"))
	require.Equal(t, icon.Variant{Path: "res/drawable/ic_launcher_foreground.png", Size: icon.DefaultSize, Shape: icon.ShapeForeground},
		launcherVariant("res/drawable/ic_launcher_foreground.png"))
}

func TestIconTables(t *testing.T) {
	seen := map[string]bool{}
	for _, v := range launcherIcons {
		require.False(t, seen[v.Path], v.Path)
		seen[v.Path] = true
		require.Equal(t, icon.SizeForPath(v.Path), v.Size, v.Path)
	}
	require.Len(t, foregroundBases, 9)
}
