package apkbuilder

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGeneratePackageName(t *testing.T) {
	tests := []struct {
		appName string
		want    string
	}{
		{"MyApp", "com.w2a.b8iu"},
		{"我的应用", "com.w2a.cv3t"},
		{"a", "com.w2a.a02p"},
		{"Hello 😀", "com.w2a.c0fh"},
	}

	for _, tt := range tests {
		t.Run(tt.appName, func(t *testing.T) {
			got := GeneratePackageName(tt.appName)
			require.Equal(t, tt.want, got)
			require.Regexp(t, packageNamePattern, got)
		})
	}
}

func TestResolveDefaults(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)

	cfg := DefaultConfig()
	cfg.AppName = "  MyApp "
	cfg.TargetURL = "https://example.com"

	got, err := cfg.Resolve(now)
	require.NoError(t, err)
	require.Equal(t, "MyApp", got.AppName)
	require.Equal(t, "com.w2a.b8iu", got.PackageName)
	require.Equal(t, 1_760_000_000, got.VersionCode)
	require.Equal(t, "1.0.0", got.VersionName)

	// The input is left untouched.
	require.Empty(t, cfg.PackageName)
}

func TestResolveCustomIdentity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AppName = "Shop"
	cfg.TargetURL = "https://shop.example"
	cfg.PackageName = "Sh.Shihao"
	cfg.VersionCode = 7
	cfg.VersionName = "3.1"

	got, err := cfg.Resolve(time.Now())
	require.NoError(t, err)
	require.Equal(t, "sh.shihao", got.PackageName)
	require.Equal(t, 7, got.VersionCode)
	require.Equal(t, "3.1", got.VersionName)
}

func TestResolveRejects(t *testing.T) {
	base := func() BuildConfig {
		c := DefaultConfig()
		c.AppName = "App"
		c.TargetURL = "https://example.com"

		return c
	}

	tests := map[string]func(c *BuildConfig){
		"empty name":          func(c *BuildConfig) { c.AppName = " " },
		"web without target":  func(c *BuildConfig) { c.TargetURL = "" },
		"unknown type":        func(c *BuildConfig) { c.AppType = "GAME" },
		"single segment":      func(c *BuildConfig) { c.PackageName = "app" },
		"digit segment":       func(c *BuildConfig) { c.PackageName = "com.1app" },
		"package too long":    func(c *BuildConfig) { c.PackageName = "com." + strings.Repeat("a", 252) },
		"negative version":    func(c *BuildConfig) { c.VersionCode = -1 },
		"version overflow":    func(c *BuildConfig) { c.VersionCode = math.MaxInt32 + 1 },
		"version name length": func(c *BuildConfig) { c.VersionName = strings.Repeat("9", 256) },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(&c)
			_, err := c.Resolve(time.Now())
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestResolveAppTypes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AppName = "Pics"
	cfg.AppType = AppTypeImage
	cfg.TargetURL = "/sdcard/pic.png"

	got, err := cfg.Resolve(time.Now())
	require.NoError(t, err)
	require.Equal(t, "/sdcard/pic.png", got.Media.Path)

	cfg = DefaultConfig()
	cfg.AppName = "Site"
	cfg.AppType = AppTypeHTML
	cfg.HTML.EntryFile = ""

	got, err = cfg.Resolve(time.Now())
	require.NoError(t, err)
	require.Equal(t, "index.html", got.HTML.EntryFile)
}

const yamlConfig = `
appName: Docs
packageName: com.example.docs
appType: HTML
webView:
  javaScript: false
  injectScripts:
    - name: dark
      code: document.body.classList.add('dark')
      enabled: true
      runAt: DOCUMENT_END
html:
  entryFile: main.html
  files:
    - name: main.html
      path: /tmp/main.html
bgm:
  enabled: true
  volume: 0.8
  playlist:
    - id: t1
      path: /tmp/t1.mp3
      lyrics:
        title: Song
        lines:
          - startMs: 1000
            text: la
`

const jsonConfig = `{
  "appName": "Docs",
  "packageName": "com.example.docs",
  "appType": "HTML",
  "webView": {"javaScript": false, "injectScripts": [{"name": "dark", "code": "document.body.classList.add('dark')", "enabled": true, "runAt": "DOCUMENT_END"}]},
  "html": {"entryFile": "main.html", "files": [{"name": "main.html", "path": "/tmp/main.html"}]},
  "bgm": {"enabled": true, "volume": 0.8, "playlist": [{"id": "t1", "path": "/tmp/t1.mp3", "lyrics": {"title": "Song", "lines": [{"startMs": 1000, "text": "la"}]}}]}
}`

const plistConfig = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>appName</key><string>Docs</string>
  <key>packageName</key><string>com.example.docs</string>
  <key>appType</key><string>HTML</string>
  <key>webView</key>
  <dict>
    <key>javaScript</key><false/>
    <key>injectScripts</key>
    <array>
      <dict>
        <key>name</key><string>dark</string>
        <key>code</key><string>document.body.classList.add('dark')</string>
        <key>enabled</key><true/>
        <key>runAt</key><string>DOCUMENT_END</string>
      </dict>
    </array>
  </dict>
  <key>html</key>
  <dict>
    <key>entryFile</key><string>main.html</string>
    <key>files</key>
    <array>
      <dict><key>name</key><string>main.html</string><key>path</key><string>/tmp/main.html</string></dict>
    </array>
  </dict>
  <key>bgm</key>
  <dict>
    <key>enabled</key><true/>
    <key>volume</key><real>0.8</real>
    <key>playlist</key>
    <array>
      <dict>
        <key>id</key><string>t1</string>
        <key>path</key><string>/tmp/t1.mp3</string>
        <key>lyrics</key>
        <dict>
          <key>title</key><string>Song</string>
          <key>lines</key>
          <array><dict><key>startMs</key><integer>1000</integer><key>text</key><string>la</string></dict></array>
        </dict>
      </dict>
    </array>
  </dict>
</dict>
</plist>
`

func TestLoadConfigFormats(t *testing.T) {
	dir := t.TempDir()

	for ext, body := range map[string]string{".yaml": yamlConfig, ".json": jsonConfig, ".plist": plistConfig} {
		t.Run(ext, func(t *testing.T) {
			p := filepath.Join(dir, "app"+ext)
			require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

			cfg, err := LoadConfig(p)
			require.NoError(t, err)

			require.Equal(t, "Docs", cfg.AppName)
			require.Equal(t, AppTypeHTML, cfg.AppType)
			require.False(t, cfg.WebView.JavaScript)
			// Unset fields keep their defaults.
			require.True(t, cfg.WebView.DOMStorage)
			require.Equal(t, 3, cfg.Splash.Duration)
			require.Equal(t, []UserScript{{
				Name: "dark", Code: "document.body.classList.add('dark')", Enabled: true, RunAt: "DOCUMENT_END",
			}}, cfg.WebView.InjectScripts)
			require.Equal(t, "main.html", cfg.HTML.EntryFile)
			require.Equal(t, []HTMLFile{{Name: "main.html", Path: "/tmp/main.html"}}, cfg.HTML.Files)
			require.InDelta(t, 0.8, cfg.BGM.Volume, 1e-9)
			require.Len(t, cfg.BGM.Playlist, 1)
			require.Equal(t, "Song", cfg.BGM.Playlist[0].Lyrics.Title)
			require.Equal(t, []LyricLine{{StartMs: 1000, Text: "la"}}, cfg.BGM.Playlist[0].Lyrics.Lines)
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	p := filepath.Join(dir, "app.toml")
	require.NoError(t, os.WriteFile(p, []byte("appName = 'x'"), 0o644))
	_, err = LoadConfig(p)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseConfig([]byte(`{"appName": "x", "unknown": 1}`), ".json")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWriteConfigRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "app.yaml")
	cfg := webConfig()
	cfg.BGM.LyricTheme = &LyricTheme{ID: "neon", FontSize: 18}

	require.NoError(t, WriteConfig(p, cfg))

	got, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, cfg.AppName, got.AppName)
	require.Equal(t, cfg.PackageName, got.PackageName)
	require.Equal(t, cfg.VersionCode, got.VersionCode)
	require.Equal(t, cfg.TargetURL, got.TargetURL)
	require.Equal(t, cfg.Splash, got.Splash)
	require.Equal(t, cfg.BGM.LyricTheme, got.BGM.LyricTheme)
}
