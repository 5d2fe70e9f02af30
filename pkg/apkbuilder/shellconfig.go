package apkbuilder

import (
	"encoding/json"
	"fmt"
)

// ConfigEntryName is where the generated app's bootstrap reads its settings.
const ConfigEntryName = "assets/app_config.json"

// ShellConfig is the flat document the bootstrap reader of the template
// expects. Keys are part of the template contract.
type ShellConfig struct {
	AppName     string `json:"appName"`
	PackageName string `json:"packageName"`
	TargetURL   string `json:"targetUrl"`
	VersionCode int    `json:"versionCode"`
	VersionName string `json:"versionName"`

	ActivationEnabled bool     `json:"activationEnabled"`
	ActivationCodes   []string `json:"activationCodes"`

	AdBlockEnabled bool     `json:"adBlockEnabled"`
	AdBlockRules   []string `json:"adBlockRules"`

	AnnouncementEnabled    bool   `json:"announcementEnabled"`
	AnnouncementTitle      string `json:"announcementTitle"`
	AnnouncementContent    string `json:"announcementContent"`
	AnnouncementLink       string `json:"announcementLink"`
	AnnouncementButtonText string `json:"announcementButtonText"`
	AnnouncementButtonURL  string `json:"announcementButtonUrl"`

	JavaScriptEnabled bool         `json:"javaScriptEnabled"`
	DOMStorageEnabled bool         `json:"domStorageEnabled"`
	ZoomEnabled       bool         `json:"zoomEnabled"`
	DesktopMode       bool         `json:"desktopMode"`
	UserAgent         string       `json:"userAgent,omitempty"`
	HideToolbar       bool         `json:"hideToolbar"`
	LandscapeMode     bool         `json:"landscapeMode"`
	InjectScripts     []UserScript `json:"injectScripts"`

	SplashEnabled      bool   `json:"splashEnabled"`
	SplashType         string `json:"splashType"`
	SplashDuration     int    `json:"splashDuration"`
	SplashClickToSkip  bool   `json:"splashClickToSkip"`
	SplashVideoStartMs int64  `json:"splashVideoStartMs"`
	SplashVideoEndMs   int64  `json:"splashVideoEndMs"`
	SplashLandscape    bool   `json:"splashLandscape"`
	SplashFillScreen   bool   `json:"splashFillScreen"`
	SplashEnableAudio  bool   `json:"splashEnableAudio"`

	AppType          string `json:"appType"`
	MediaEnableAudio bool   `json:"mediaEnableAudio"`
	MediaLoop        bool   `json:"mediaLoop"`
	MediaAutoPlay    bool   `json:"mediaAutoPlay"`
	MediaFillScreen  bool   `json:"mediaFillScreen"`
	MediaLandscape   bool   `json:"mediaLandscape"`

	HTMLEntryFile          string `json:"htmlEntryFile"`
	HTMLEnableJavaScript   bool   `json:"htmlEnableJavaScript"`
	HTMLEnableLocalStorage bool   `json:"htmlEnableLocalStorage"`

	BGMEnabled    bool           `json:"bgmEnabled"`
	BGMPlaylist   []ShellTrack   `json:"bgmPlaylist"`
	BGMPlayMode   string         `json:"bgmPlayMode"`
	BGMVolume     float64        `json:"bgmVolume"`
	BGMAutoPlay   bool           `json:"bgmAutoPlay"`
	BGMShowLyrics bool           `json:"bgmShowLyrics"`
	BGMLrcTheme   *ShellLrcTheme `json:"bgmLrcTheme"`

	ThemeType string `json:"themeType"`
}

type ShellTrack struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	AssetPath    string  `json:"assetPath"`
	LrcAssetPath *string `json:"lrcAssetPath"`
	SortOrder    int     `json:"sortOrder"`
}

type ShellLrcTheme struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	FontSize        float64 `json:"fontSize"`
	TextColor       string  `json:"textColor"`
	HighlightColor  string  `json:"highlightColor"`
	BackgroundColor string  `json:"backgroundColor"`
	AnimationType   string  `json:"animationType"`
	Position        string  `json:"position"`
}

func bgmAssetPath(i int) string { return fmt.Sprintf("bgm/bgm_%d.mp3", i) }
func lrcAssetPath(i int) string { return fmt.Sprintf("bgm/bgm_%d.lrc", i) }

// newShellConfig maps c to the runtime config. tracks holds the audio of each
// playlist entry; entries whose audio is nil are left out.
func newShellConfig(c *BuildConfig, tracks [][]byte) ShellConfig {
	sc := ShellConfig{
		AppName:     c.AppName,
		PackageName: c.PackageName,
		TargetURL:   c.TargetURL,
		VersionCode: c.VersionCode,
		VersionName: c.VersionName,

		ActivationEnabled: c.Activation.Enabled,
		ActivationCodes:   nonNil(c.Activation.Codes),
		AdBlockEnabled:    c.AdBlock.Enabled,
		AdBlockRules:      nonNil(c.AdBlock.Rules),

		AnnouncementEnabled:    c.Announcement.Enabled,
		AnnouncementTitle:      c.Announcement.Title,
		AnnouncementContent:    c.Announcement.Content,
		AnnouncementLink:       c.Announcement.Link,
		AnnouncementButtonText: c.Announcement.ButtonText,
		AnnouncementButtonURL:  c.Announcement.ButtonURL,

		JavaScriptEnabled: c.WebView.JavaScript,
		DOMStorageEnabled: c.WebView.DOMStorage,
		ZoomEnabled:       c.WebView.Zoom,
		DesktopMode:       c.WebView.DesktopMode,
		UserAgent:         c.WebView.UserAgent,
		HideToolbar:       c.WebView.HideToolbar,
		LandscapeMode:     c.WebView.Landscape,
		InjectScripts:     c.WebView.InjectScripts,

		SplashEnabled:      c.Splash.Enabled,
		SplashType:         string(c.Splash.Type),
		SplashDuration:     c.Splash.Duration,
		SplashClickToSkip:  c.Splash.ClickToSkip,
		SplashVideoStartMs: c.Splash.VideoStartMs,
		SplashVideoEndMs:   c.Splash.VideoEndMs,
		SplashLandscape:    c.Splash.Landscape,
		SplashFillScreen:   c.Splash.FillScreen,
		SplashEnableAudio:  c.Splash.EnableAudio,

		AppType:          string(c.AppType),
		MediaEnableAudio: c.Media.EnableAudio,
		MediaLoop:        c.Media.Loop,
		MediaAutoPlay:    c.Media.AutoPlay,
		MediaFillScreen:  c.Media.FillScreen,
		MediaLandscape:   c.Media.Landscape,

		HTMLEntryFile:          c.HTML.EntryFile,
		HTMLEnableJavaScript:   c.HTML.EnableJavaScript,
		HTMLEnableLocalStorage: c.HTML.EnableLocalStorage,

		BGMEnabled:    c.BGM.Enabled,
		BGMPlaylist:   []ShellTrack{},
		BGMPlayMode:   c.BGM.PlayMode,
		BGMVolume:     c.BGM.Volume,
		BGMAutoPlay:   c.BGM.AutoPlay,
		BGMShowLyrics: c.BGM.ShowLyrics,

		ThemeType: c.Theme,
	}
	if sc.InjectScripts == nil {
		sc.InjectScripts = []UserScript{}
	}

	for i, t := range c.BGM.Playlist {
		if i >= len(tracks) || tracks[i] == nil {
			continue
		}
		st := ShellTrack{ID: t.ID, Name: t.Name, AssetPath: bgmAssetPath(i), SortOrder: t.SortOrder}
		if hasLyrics(t) {
			p := lrcAssetPath(i)
			st.LrcAssetPath = &p
		}
		sc.BGMPlaylist = append(sc.BGMPlaylist, st)
	}

	if th := c.BGM.LyricTheme; th != nil {
		sc.BGMLrcTheme = &ShellLrcTheme{
			ID:              th.ID,
			Name:            th.Name,
			FontSize:        th.FontSize,
			TextColor:       th.TextColor,
			HighlightColor:  th.HighlightColor,
			BackgroundColor: th.BackgroundColor,
			AnimationType:   th.AnimationType,
			Position:        th.Position,
		}
	}

	return sc
}

// marshalShellConfig renders the config entry payload.
func marshalShellConfig(c *BuildConfig, tracks [][]byte) ([]byte, error) {
	data, err := json.MarshalIndent(newShellConfig(c, tracks), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal app config: %w", err)
	}

	return data, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
