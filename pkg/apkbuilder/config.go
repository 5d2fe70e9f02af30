package apkbuilder

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// AppType selects what the generated app presents.
type AppType string

const (
	AppTypeWeb   AppType = "WEB"
	AppTypeImage AppType = "IMAGE"
	AppTypeVideo AppType = "VIDEO"
	AppTypeHTML  AppType = "HTML"
)

// MediaType distinguishes still and moving splash media.
type MediaType string

const (
	MediaImage MediaType = "IMAGE"
	MediaVideo MediaType = "VIDEO"
)

const (
	defaultVersionName = "1.0.0"
	defaultHTMLEntry   = "index.html"
	maxIdentityLength  = 255
)

// BuildConfig is every user choice for one build. Treat it as read-only once
// passed to Build.
type BuildConfig struct {
	AppName     string  `yaml:"appName" json:"appName" plist:"appName"`
	PackageName string  `yaml:"packageName" json:"packageName" plist:"packageName"`
	VersionCode int     `yaml:"versionCode" json:"versionCode" plist:"versionCode"`
	VersionName string  `yaml:"versionName" json:"versionName" plist:"versionName"`
	TargetURL   string  `yaml:"targetUrl" json:"targetUrl" plist:"targetUrl"`
	AppType     AppType `yaml:"appType" json:"appType" plist:"appType"`
	IconPath    string  `yaml:"iconPath" json:"iconPath" plist:"iconPath"`
	Theme       string  `yaml:"theme" json:"theme" plist:"theme"`

	WebView      WebViewConfig      `yaml:"webView" json:"webView" plist:"webView"`
	Activation   ActivationConfig   `yaml:"activation" json:"activation" plist:"activation"`
	AdBlock      AdBlockConfig      `yaml:"adBlock" json:"adBlock" plist:"adBlock"`
	Announcement AnnouncementConfig `yaml:"announcement" json:"announcement" plist:"announcement"`
	Splash       SplashConfig       `yaml:"splash" json:"splash" plist:"splash"`
	Media        MediaConfig        `yaml:"media" json:"media" plist:"media"`
	HTML         HTMLConfig         `yaml:"html" json:"html" plist:"html"`
	BGM          BGMConfig          `yaml:"bgm" json:"bgm" plist:"bgm"`
}

type WebViewConfig struct {
	JavaScript    bool         `yaml:"javaScript" json:"javaScript" plist:"javaScript"`
	DOMStorage    bool         `yaml:"domStorage" json:"domStorage" plist:"domStorage"`
	Zoom          bool         `yaml:"zoom" json:"zoom" plist:"zoom"`
	DesktopMode   bool         `yaml:"desktopMode" json:"desktopMode" plist:"desktopMode"`
	UserAgent     string       `yaml:"userAgent" json:"userAgent" plist:"userAgent"`
	HideToolbar   bool         `yaml:"hideToolbar" json:"hideToolbar" plist:"hideToolbar"`
	Landscape     bool         `yaml:"landscape" json:"landscape" plist:"landscape"`
	InjectScripts []UserScript `yaml:"injectScripts" json:"injectScripts" plist:"injectScripts"`
}

// UserScript is JavaScript injected into every page.
type UserScript struct {
	Name    string `yaml:"name" json:"name" plist:"name"`
	Code    string `yaml:"code" json:"code" plist:"code"`
	Enabled bool   `yaml:"enabled" json:"enabled" plist:"enabled"`
	RunAt   string `yaml:"runAt" json:"runAt" plist:"runAt"`
}

type ActivationConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled" plist:"enabled"`
	Codes   []string `yaml:"codes" json:"codes" plist:"codes"`
}

type AdBlockConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled" plist:"enabled"`
	Rules   []string `yaml:"rules" json:"rules" plist:"rules"`
}

type AnnouncementConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled" plist:"enabled"`
	Title      string `yaml:"title" json:"title" plist:"title"`
	Content    string `yaml:"content" json:"content" plist:"content"`
	Link       string `yaml:"link" json:"link" plist:"link"`
	ButtonText string `yaml:"buttonText" json:"buttonText" plist:"buttonText"`
	ButtonURL  string `yaml:"buttonUrl" json:"buttonUrl" plist:"buttonUrl"`
}

type SplashConfig struct {
	Enabled      bool      `yaml:"enabled" json:"enabled" plist:"enabled"`
	Type         MediaType `yaml:"type" json:"type" plist:"type"`
	MediaPath    string    `yaml:"mediaPath" json:"mediaPath" plist:"mediaPath"`
	Duration     int       `yaml:"duration" json:"duration" plist:"duration"`
	ClickToSkip  bool      `yaml:"clickToSkip" json:"clickToSkip" plist:"clickToSkip"`
	VideoStartMs int64     `yaml:"videoStartMs" json:"videoStartMs" plist:"videoStartMs"`
	VideoEndMs   int64     `yaml:"videoEndMs" json:"videoEndMs" plist:"videoEndMs"`
	Landscape    bool      `yaml:"landscape" json:"landscape" plist:"landscape"`
	FillScreen   bool      `yaml:"fillScreen" json:"fillScreen" plist:"fillScreen"`
	EnableAudio  bool      `yaml:"enableAudio" json:"enableAudio" plist:"enableAudio"`
}

// MediaConfig describes the payload of IMAGE and VIDEO apps.
type MediaConfig struct {
	Path        string `yaml:"path" json:"path" plist:"path"`
	EnableAudio bool   `yaml:"enableAudio" json:"enableAudio" plist:"enableAudio"`
	Loop        bool   `yaml:"loop" json:"loop" plist:"loop"`
	AutoPlay    bool   `yaml:"autoPlay" json:"autoPlay" plist:"autoPlay"`
	FillScreen  bool   `yaml:"fillScreen" json:"fillScreen" plist:"fillScreen"`
	Landscape   bool   `yaml:"landscape" json:"landscape" plist:"landscape"`
}

// HTMLConfig describes the bundled documents of HTML apps.
type HTMLConfig struct {
	EntryFile          string     `yaml:"entryFile" json:"entryFile" plist:"entryFile"`
	EnableJavaScript   bool       `yaml:"enableJavaScript" json:"enableJavaScript" plist:"enableJavaScript"`
	EnableLocalStorage bool       `yaml:"enableLocalStorage" json:"enableLocalStorage" plist:"enableLocalStorage"`
	Files              []HTMLFile `yaml:"files" json:"files" plist:"files"`
}

// HTMLFile is one document; Name is its path relative to the site root.
type HTMLFile struct {
	Name string `yaml:"name" json:"name" plist:"name"`
	Path string `yaml:"path" json:"path" plist:"path"`
}

type BGMConfig struct {
	Enabled    bool        `yaml:"enabled" json:"enabled" plist:"enabled"`
	Playlist   []BGMTrack  `yaml:"playlist" json:"playlist" plist:"playlist"`
	PlayMode   string      `yaml:"playMode" json:"playMode" plist:"playMode"`
	Volume     float64     `yaml:"volume" json:"volume" plist:"volume"`
	AutoPlay   bool        `yaml:"autoPlay" json:"autoPlay" plist:"autoPlay"`
	ShowLyrics bool        `yaml:"showLyrics" json:"showLyrics" plist:"showLyrics"`
	LyricTheme *LyricTheme `yaml:"lyricTheme" json:"lyricTheme" plist:"lyricTheme"`
}

// BGMTrack is one background audio file. Path may use the asset:/// scheme
// to refer to a file shipped with the host app.
type BGMTrack struct {
	ID        string  `yaml:"id" json:"id" plist:"id"`
	Name      string  `yaml:"name" json:"name" plist:"name"`
	Path      string  `yaml:"path" json:"path" plist:"path"`
	SortOrder int     `yaml:"sortOrder" json:"sortOrder" plist:"sortOrder"`
	Lyrics    *Lyrics `yaml:"lyrics" json:"lyrics" plist:"lyrics"`
}

type Lyrics struct {
	Title  string      `yaml:"title" json:"title" plist:"title"`
	Artist string      `yaml:"artist" json:"artist" plist:"artist"`
	Album  string      `yaml:"album" json:"album" plist:"album"`
	Lines  []LyricLine `yaml:"lines" json:"lines" plist:"lines"`
}

type LyricLine struct {
	StartMs     int64  `yaml:"startMs" json:"startMs" plist:"startMs"`
	Text        string `yaml:"text" json:"text" plist:"text"`
	Translation string `yaml:"translation" json:"translation" plist:"translation"`
}

type LyricTheme struct {
	ID              string  `yaml:"id" json:"id" plist:"id"`
	Name            string  `yaml:"name" json:"name" plist:"name"`
	FontSize        float64 `yaml:"fontSize" json:"fontSize" plist:"fontSize"`
	TextColor       string  `yaml:"textColor" json:"textColor" plist:"textColor"`
	HighlightColor  string  `yaml:"highlightColor" json:"highlightColor" plist:"highlightColor"`
	BackgroundColor string  `yaml:"backgroundColor" json:"backgroundColor" plist:"backgroundColor"`
	AnimationType   string  `yaml:"animationType" json:"animationType" plist:"animationType"`
	Position        string  `yaml:"position" json:"position" plist:"position"`
}

// DefaultConfig returns a config with the defaults of a freshly created app.
// Config files are decoded on top of it.
func DefaultConfig() BuildConfig {
	return BuildConfig{
		AppType: AppTypeWeb,
		Theme:   "AURORA",
		WebView: WebViewConfig{JavaScript: true, DOMStorage: true},
		Splash: SplashConfig{
			Type:        MediaImage,
			Duration:    3,
			ClickToSkip: true,
			VideoEndMs:  5000,
			FillScreen:  true,
		},
		Media: MediaConfig{EnableAudio: true, Loop: true, AutoPlay: true, FillScreen: true},
		HTML:  HTMLConfig{EntryFile: defaultHTMLEntry, EnableJavaScript: true, EnableLocalStorage: true},
		BGM:   BGMConfig{PlayMode: "LOOP", Volume: 0.5, AutoPlay: true, ShowLyrics: true},
	}
}

var packageNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// Resolve validates c and returns a copy with generated identity fields
// filled in: a package name derived from the app name, the current Unix time
// as version code and "1.0.0" as version name.
func (c *BuildConfig) Resolve(now time.Time) (*BuildConfig, error) {
	out := *c

	out.AppName = strings.TrimSpace(out.AppName)
	if out.AppName == "" {
		return nil, fmt.Errorf("%w: app name is empty", ErrInvalidConfig)
	}

	if out.AppType == "" {
		out.AppType = AppTypeWeb
	}
	switch out.AppType {
	case AppTypeWeb:
		if strings.TrimSpace(out.TargetURL) == "" {
			return nil, fmt.Errorf("%w: target url is required for WEB apps", ErrInvalidConfig)
		}
	case AppTypeImage, AppTypeVideo:
		if out.Media.Path == "" {
			out.Media.Path = out.TargetURL
		}
	case AppTypeHTML:
		if out.HTML.EntryFile == "" {
			out.HTML.EntryFile = defaultHTMLEntry
		}
	default:
		return nil, fmt.Errorf("%w: unknown app type %q", ErrInvalidConfig, out.AppType)
	}

	pkg := strings.ToLower(strings.TrimSpace(out.PackageName))
	if pkg == "" {
		pkg = GeneratePackageName(out.AppName)
	}
	if len(pkg) > maxIdentityLength || !packageNamePattern.MatchString(pkg) {
		return nil, fmt.Errorf("%w: package name %q", ErrInvalidConfig, out.PackageName)
	}
	out.PackageName = pkg

	switch {
	case out.VersionCode == 0:
		out.VersionCode = int(now.Unix() % math.MaxInt32)
	case out.VersionCode < 0 || out.VersionCode > math.MaxInt32:
		return nil, fmt.Errorf("%w: version code %d", ErrInvalidConfig, out.VersionCode)
	}

	out.VersionName = strings.TrimSpace(out.VersionName)
	if out.VersionName == "" {
		out.VersionName = defaultVersionName
	}
	if utf8.RuneCountInString(out.VersionName) > maxIdentityLength {
		return nil, fmt.Errorf("%w: version name longer than %d characters", ErrInvalidConfig, maxIdentityLength)
	}

	if out.Splash.Type == "" {
		out.Splash.Type = MediaImage
	}

	return &out, nil
}

// GeneratePackageName derives a stable com.w2a.xxxx package name from an
// app name.
func GeneratePackageName(appName string) string {
	h := int64(javaStringHash(appName))
	if h < 0 {
		h = -h
	}

	raw := strconv.FormatInt(h, 36)
	if len(raw) > 4 {
		raw = raw[:4]
	}
	raw = strings.Repeat("0", 4-len(raw)) + raw

	return "com.w2a." + normalizeSegment(raw)
}

// javaStringHash is the 31-multiplier hash over UTF-16 code units.
func javaStringHash(s string) int32 {
	var h int32
	for _, r := range s {
		if r >= 0x10000 {
			r -= 0x10000
			h = 31*h + int32(0xD800+(r>>10))
			h = 31*h + int32(0xDC00+(r&0x3FF))

			continue
		}
		h = 31*h + r
	}

	return h
}

// normalizeSegment makes s a valid package segment by mapping a leading
// digit 0-9 to a-j.
func normalizeSegment(s string) string {
	if s == "" {
		return "a"
	}

	b := []byte(strings.ToLower(s))
	switch c := b[0]; {
	case c >= 'a' && c <= 'z':
	case c >= '0' && c <= '9':
		b[0] = 'a' + (c - '0')
	default:
		b[0] = 'a'
	}

	return string(b)
}
