package logger

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("verbose")
	require.False(t, ok)
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, global, FromContext(context.Background()))

	l := New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), l)
	require.Same(t, l, FromContext(ctx))
}

func TestBuildLogCapturesDebug(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

	bl, err := NewBuildLog(dir, "My_App_1", now, New(zapcore.ErrorLevel))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(bl.Path, "build_20240309_140506_My_App_1.log"))

	ctx := ToContext(context.Background(), bl.Logger)
	DebugKV(ctx, "resource table patched", "strategy", "exact")
	require.NoError(t, bl.Close())

	data, err := os.ReadFile(bl.Path)
	require.NoError(t, err)
	require.Contains(t, string(data), "===== build log: My_App_1 =====")
	require.Contains(t, string(data), "resource table patched")
	require.Contains(t, string(data), "strategy")
}

func TestContextFieldsFollowTheCallChain(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "build")
	ctx = WithKV(ctx, "package", "com.example.app")

	WarnKV(ctx, "payload skipped", "kind", "bgm")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "build", entries[0].LoggerName)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	require.Equal(t, map[string]any{"package": "com.example.app", "kind": "bgm"}, entries[0].ContextMap())
}
