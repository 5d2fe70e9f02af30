package apkbuilder

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yingcaihuang/web-to-app/pkg/apksign"
	"github.com/yingcaihuang/web-to-app/pkg/arsc"
	"github.com/yingcaihuang/web-to-app/pkg/axml"
)

const (
	templatePackage = "com.webtoapp"
	templateVersion = "1.0"
)

var (
	identityOnce sync.Once
	identity     *apksign.Identity
	identityErr  error
)

func testSigner(t *testing.T) *apksign.Signer {
	t.Helper()
	identityOnce.Do(func() {
		identity, identityErr = apksign.GenerateIdentity("Build Test", 24*time.Hour)
	})
	require.NoError(t, identityErr)

	return apksign.NewSigner(identity)
}

type failingSigner struct{}

func (failingSigner) Sign(context.Context, string, string) error {
	return errors.New("keystore locked")
}

// templateTable is a stand-in resource table: opaque bytes around the marker
// name and the adaptive foreground path.
func templateTable() []byte {
	var b bytes.Buffer
	b.Write([]byte{0x02, 0x00, 0x0c, 0x00, 0x00, 0x10, 0x00, 0x00})
	b.WriteString("\x2a\x2a")
	b.WriteString(arsc.NameMarker.String())
	b.WriteByte(0)
	b.WriteString("\x26\x26res/drawable/ic_launcher_foreground.xml")
	b.WriteByte(0)
	b.Write(bytes.Repeat([]byte{0x7f}, 33))

	return b.Bytes()
}

func pngBytes(t *testing.T, size int, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

type templateEntry struct {
	name   string
	data   []byte
	stored bool
}

// templateEntries is a shell template: the manifest, a deflated resource
// table not in first position, launcher icons, adaptive icon resources,
// an old signature and payloads of a previous build.
func templateEntries(t *testing.T, withIcons bool) []templateEntry {
	t.Helper()

	manifest, err := axml.NewManifest(templatePackage, 1, templateVersion)
	require.NoError(t, err)

	entries := []templateEntry{
		{name: "META-INF/MANIFEST.MF", data: []byte("Manifest-Version: 1.0\r\n\r\n")},
		{name: "META-INF/CERT.SF", data: []byte("Signature-Version: 1.0\r\n\r\n")},
		{name: "META-INF/CERT.RSA", data: []byte{0x30, 0x80}},
		{name: manifestEntryName, data: manifest},
		{name: "classes.dex", data: bytes.Repeat([]byte("dex\n035\x00"), 512)},
		{name: tableEntryName, data: templateTable()},
		{name: "res/layout/activity_main.xml", data: []byte{0x03, 0x00, 0x08, 0x00}},
		{name: "res/values/ic_launcher_background.xml", data: []byte("bg")},
		{name: "res/mipmap-anydpi-v26/ic_launcher.xml", data: []byte("adaptive")},
		{name: "res/mipmap-anydpi-v26/ic_launcher_round.xml", data: []byte("adaptive-round")},
		{name: "res/drawable/ic_launcher_foreground.xml", data: []byte("vector")},
		{name: "res/drawable/ic_launcher_background.xml", data: []byte("vector-bg")},
		{name: ConfigEntryName, data: []byte(`{"appName":"Template"}`)},
		{name: "assets/splash_media.png", data: []byte("old splash"), stored: true},
		{name: "assets/bgm/bgm_5.mp3", data: []byte("old bgm"), stored: true},
		{name: "assets/html/old.html", data: []byte("<p>old</p>")},
		{name: "assets/fonts/shell.ttf", data: []byte("font")},
	}

	if withIcons {
		red := pngBytes(t, 8, color.RGBA{R: 0xff, A: 0xff})
		entries = append(entries,
			templateEntry{name: "res/mipmap-xxhdpi-v4/ic_launcher.png", data: red},
			templateEntry{name: "res/mipmap-xxhdpi-v4/ic_launcher_round.png", data: red},
			templateEntry{name: "res/mipmap-hdpi/ic_launcher.png", data: red},
			templateEntry{name: "res/drawable-xhdpi/ic_launcher_foreground.png", data: red},
		)
	}

	return entries
}

func writeTemplate(t *testing.T, dir string, entries []templateEntry) string {
	t.Helper()

	path := filepath.Join(dir, "template.apk")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		method := zip.Deflate
		if e.stored {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return path
}

func newTestBuilder(t *testing.T, withIcons bool) *Builder {
	t.Helper()

	dir := t.TempDir()

	return &Builder{
		TemplatePath: writeTemplate(t, dir, templateEntries(t, withIcons)),
		OutputDir:    filepath.Join(dir, "out"),
		WorkDir:      filepath.Join(dir, "work"),
		LogDir:       filepath.Join(dir, "logs"),
		Signer:       testSigner(t),
		Now:          func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func webConfig() *BuildConfig {
	cfg := DefaultConfig()
	cfg.AppName = "My App"
	cfg.PackageName = "com.example.myapp"
	cfg.VersionCode = 42
	cfg.VersionName = "2.0.1"
	cfg.TargetURL = "https://example.com"

	return &cfg
}

type archive struct {
	files  []*zip.File
	byName map[string]*zip.File
}

func openArchive(t *testing.T, path string) *archive {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	a := &archive{files: zr.File, byName: make(map[string]*zip.File)}
	for _, f := range zr.File {
		a.byName[f.Name] = f
	}

	return a
}

func (a *archive) has(name string) bool {
	_, ok := a.byName[name]

	return ok
}

func (a *archive) read(t *testing.T, name string) []byte {
	t.Helper()

	f, ok := a.byName[name]
	require.True(t, ok, "missing entry %s", name)
	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	return data
}

func (a *archive) imageSize(t *testing.T, name string) int {
	t.Helper()

	img, err := png.Decode(bytes.NewReader(a.read(t, name)))
	require.NoError(t, err)
	require.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())

	return img.Bounds().Dx()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))

	return p
}
