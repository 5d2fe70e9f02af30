package apkbuilder

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/yingcaihuang/web-to-app/internal/logger"
)

const (
	splashEntryBase = "assets/splash_media."
	mediaEntryBase  = "assets/media_content."
	bgmEntryDir     = "assets/bgm/"
	htmlEntryDir    = "assets/html/"

	hostAssetScheme = "asset:///"
)

// stalePayloadPrefixes are entries a previous build injected.
var stalePayloadPrefixes = []string{splashEntryBase, mediaEntryBase, bgmEntryDir, htmlEntryDir}

func mediaExt(t MediaType) string {
	if t == MediaVideo {
		return "mp4"
	}

	return "png"
}

// readPayload loads a user file. Missing, unreadable or empty files are
// logged and reported as nil so the build goes on without them.
func (r *rewriter) readPayload(ctx context.Context, kind, p string) []byte {
	if p == "" {
		logger.WarnKV(ctx, "payload path is empty", "kind", kind)

		return nil
	}

	var (
		data []byte
		err  error
	)
	if rest, ok := strings.CutPrefix(p, hostAssetScheme); ok {
		if r.hostAssets == nil {
			logger.WarnKV(ctx, "host asset requested but no host asset directory is configured", "kind", kind, "path", p)

			return nil
		}
		data, err = fs.ReadFile(r.hostAssets, rest)
	} else {
		data, err = os.ReadFile(p)
	}

	switch {
	case err != nil:
		logger.WarnKV(ctx, "payload skipped", "kind", kind, "path", p, "error", err)

		return nil
	case len(data) == 0:
		logger.WarnKV(ctx, "payload is empty, skipped", "kind", kind, "path", p)

		return nil
	}

	return data
}

func (r *rewriter) addSplash(ctx context.Context) error {
	s := r.cfg.Splash
	if !s.Enabled || s.MediaPath == "" {
		logger.DebugKV(ctx, "splash media not embedded", "enabled", s.Enabled, "path", s.MediaPath)

		return nil
	}

	data := r.readPayload(ctx, "splash", s.MediaPath)
	if data == nil {
		return nil
	}

	name := splashEntryBase + mediaExt(s.Type)
	if _, err := r.out.stored(name, data); err != nil {
		return err
	}
	logger.InfoKV(ctx, "splash media embedded", "entry", name, "bytes", len(data))

	return nil
}

func (r *rewriter) addMedia(ctx context.Context) error {
	if r.cfg.AppType != AppTypeImage && r.cfg.AppType != AppTypeVideo {
		return nil
	}
	if r.cfg.Media.Path == "" {
		logger.Warnf(ctx, "%s app has no media path", r.cfg.AppType)

		return nil
	}

	data := r.readPayload(ctx, "media", r.cfg.Media.Path)
	if data == nil {
		return nil
	}

	t := MediaImage
	if r.cfg.AppType == AppTypeVideo {
		t = MediaVideo
	}

	name := mediaEntryBase + mediaExt(t)
	if _, err := r.out.stored(name, data); err != nil {
		return err
	}
	logger.InfoKV(ctx, "media content embedded", "entry", name, "bytes", len(data))

	return nil
}

// loadTracks reads every playlist track's audio before the app config is
// written, so the config lists only tracks that end up in the archive.
func (r *rewriter) loadTracks(ctx context.Context) {
	if !r.cfg.BGM.Enabled {
		return
	}

	r.tracks = make([][]byte, len(r.cfg.BGM.Playlist))
	for i, track := range r.cfg.BGM.Playlist {
		r.tracks[i] = r.readPayload(ctx, "bgm", track.Path)
	}
}

// hasLyrics reports whether a track gets a .lrc entry.
func hasLyrics(t BGMTrack) bool {
	return t.Lyrics != nil && len(t.Lyrics.Lines) > 0
}

func (r *rewriter) addBGM(ctx context.Context) error {
	for i, data := range r.tracks {
		if data == nil {
			continue
		}

		name := "assets/" + bgmAssetPath(i)
		if _, err := r.out.stored(name, data); err != nil {
			return err
		}
		logger.InfoKV(ctx, "bgm embedded", "entry", name, "bytes", len(data))

		track := r.cfg.BGM.Playlist[i]
		if !hasLyrics(track) {
			continue
		}

		name = "assets/" + lrcAssetPath(i)
		if _, err := r.out.deflated(name, []byte(FormatLRC(track.Lyrics))); err != nil {
			return err
		}
		logger.DebugKV(ctx, "lyrics embedded", "entry", name, "lines", len(track.Lyrics.Lines))
	}

	return nil
}

func (r *rewriter) addHTML(ctx context.Context) error {
	if r.cfg.AppType != AppTypeHTML {
		return nil
	}

	for _, f := range r.cfg.HTML.Files {
		rel, err := htmlEntryName(f.Name)
		if err != nil {
			logger.WarnKV(ctx, "html file skipped", "name", f.Name, "error", err)

			continue
		}

		data := r.readPayload(ctx, "html", f.Path)
		if data == nil {
			continue
		}

		name := htmlEntryDir + rel
		if _, err := r.out.stored(name, data); err != nil {
			return err
		}
		logger.DebugKV(ctx, "html file embedded", "entry", name, "bytes", len(data))
	}

	return nil
}

// htmlEntryName cleans a site-relative document name. Names escaping the
// site root are rejected.
func htmlEntryName(name string) (string, error) {
	n := path.Clean(strings.TrimLeft(strings.ReplaceAll(name, `\`, "/"), "/"))
	if n == "." || n == "" || n == ".." || strings.HasPrefix(n, "../") {
		return "", fmt.Errorf("invalid document name %q", name)
	}

	return n, nil
}

// FormatLRC renders lyrics in the timestamp-tagged LRC text format. A
// translation repeats its line's timestamp.
func FormatLRC(l *Lyrics) string {
	var sb strings.Builder

	for _, tag := range []struct{ key, value string }{{"ti", l.Title}, {"ar", l.Artist}, {"al", l.Album}} {
		if tag.value != "" {
			fmt.Fprintf(&sb, "[%s:%s]\n", tag.key, tag.value)
		}
	}
	sb.WriteString("\n")

	for _, line := range l.Lines {
		ts := lrcTimestamp(line.StartMs)
		fmt.Fprintf(&sb, "%s%s\n", ts, line.Text)
		if line.Translation != "" {
			fmt.Fprintf(&sb, "%s%s\n", ts, line.Translation)
		}
	}

	return sb.String()
}

func lrcTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}

	return fmt.Sprintf("[%02d:%02d.%02d]", ms/60000, ms%60000/1000, ms%1000/10)
}
