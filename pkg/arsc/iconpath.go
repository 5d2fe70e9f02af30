package arsc

import (
	"bytes"
	"context"

	"github.com/yingcaihuang/web-to-app/internal/logger"
)

// PathPair maps an adaptive-icon foreground path to its bitmap sibling.
type PathPair struct {
	From string
	To   string
}

// IconPathPairs are the foreground references a template may carry. Each
// .xml path is swapped for the .png written by the icon pipeline.
var IconPathPairs = func() []PathPair {
	dirs := []string{
		"res/drawable",
		"res/drawable-v24",
		"res/drawable-anydpi-v24",
		"res/mipmap-anydpi-v26",
		"res/mipmap-mdpi",
		"res/mipmap-hdpi",
		"res/mipmap-xhdpi",
		"res/mipmap-xxhdpi",
		"res/mipmap-xxxhdpi",
	}

	pairs := make([]PathPair, 0, len(dirs))
	for _, d := range dirs {
		pairs = append(pairs, PathPair{
			From: d + "/ic_launcher_foreground.xml",
			To:   d + "/ic_launcher_foreground.png",
		})
	}

	return pairs
}()

// RewriteIconPaths applies IconPathPairs to table.
func RewriteIconPaths(ctx context.Context, table []byte) ([]byte, int) {
	return RewritePaths(ctx, table, IconPathPairs)
}

// RewritePaths substitutes every occurrence of each pair's From with its To in
// both encodings. Pairs of unequal byte length are logged and skipped.
func RewritePaths(ctx context.Context, table []byte, pairs []PathPair) ([]byte, int) {
	out := bytes.Clone(table)
	total := 0

	for _, p := range pairs {
		for _, enc := range Encodings {
			from, err := enc.Encode(p.From)
			if err != nil {
				logger.WarnKV(ctx, "skip icon path", "from", p.From, "error", err)

				continue
			}
			to, err := enc.Encode(p.To)
			if err != nil {
				logger.WarnKV(ctx, "skip icon path", "to", p.To, "error", err)

				continue
			}
			if len(from) != len(to) {
				logger.WarnKV(ctx, "skip icon path with length mismatch",
					"from", p.From, "to", p.To, "encoding", enc)

				continue
			}

			if n := replaceAll(out, from, to); n > 0 {
				logger.DebugKV(ctx, "icon path rewritten", "from", p.From, "to", p.To, "encoding", enc, "count", n)
				total += n
			}
		}
	}

	return out, total
}
