package apkbuilder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOutputFileName(t *testing.T) {
	require.Equal(t, "My_App_v1.0.0.apk", OutputFileName("My App", "1.0.0"))
	require.Equal(t, "我的应用_v2.apk", OutputFileName("我的应用", "2"))
	require.Equal(t, "a_b-c_v1.apk", OutputFileName("a/b-c", "1"))

	require.Equal(t, "𠮷野家_v1.apk", OutputFileName("𠮷野家", "1"))
	require.Equal(t, "〇_x", SanitizeFileName("〇 x"))

	long := OutputFileName(strings.Repeat("名", 60), "1")
	require.Equal(t, strings.Repeat("名", 50)+"_v1.apk", long)
}

func TestOutputManagement(t *testing.T) {
	dir := t.TempDir()
	work := t.TempDir()

	older := writeFile(t, dir, "old_v1.apk", []byte("1"))
	newer := writeFile(t, dir, "new_v2.apk", []byte("22"))
	writeFile(t, dir, "notes.txt", []byte("x"))
	writeFile(t, work, "scratch/template.apk", []byte("x"))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	built, err := ListBuilt(dir)
	require.NoError(t, err)
	require.Len(t, built, 2)
	require.Equal(t, newer, built[0].Path)
	require.Equal(t, int64(2), built[0].Size)
	require.Equal(t, older, built[1].Path)

	require.ErrorIs(t, DeleteBuilt(dir, "notes.txt"), ErrNotBuiltAPK)
	require.ErrorIs(t, DeleteBuilt(dir, filepath.Join(work, "scratch", "template.apk")), ErrNotBuiltAPK)
	require.NoError(t, DeleteBuilt(dir, "old_v1.apk"))
	require.NoFileExists(t, older)
	require.Error(t, DeleteBuilt(dir, "old_v1.apk"))

	require.NoError(t, ClearAll(dir, work))
	for _, d := range []string{dir, work} {
		entries, err := os.ReadDir(d)
		require.NoError(t, err)
		require.Empty(t, entries)
	}
}

func TestListBuiltMissingDirectory(t *testing.T) {
	built, err := ListBuilt(filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)
	require.Empty(t, built)
	require.NoError(t, ClearAll(filepath.Join(t.TempDir(), "none"), ""))
}
