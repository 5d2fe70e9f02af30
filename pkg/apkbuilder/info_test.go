package apkbuilder

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescribeBuiltArchive(t *testing.T) {
	b := newTestBuilder(t, true)

	res := b.Build(context.Background(), webConfig(), nil)
	require.Nil(t, res.Err, res.Message())

	info, err := Describe(res.OutputPath)
	require.NoError(t, err)
	require.Empty(t, info.Problems)
	require.Equal(t, tableEntryName, info.Entries[0].Name)
	require.Equal(t, "com.example.myapp", info.Manifest.Package)
	require.Equal(t, "My App", info.Config.AppName)
	require.True(t, info.Signature.Verified())
	require.Equal(t, "Build Test", info.Signature.Certificates[0].Subject.CommonName)

	var out bytes.Buffer
	PrintArchiveInfo(info, &out, true)
	require.Contains(t, out.String(), "Package:    com.example.myapp")
	require.Contains(t, out.String(), "Version:    2.0.1 (42)")
	require.Contains(t, out.String(), "Signer: Build Test")
	require.Contains(t, out.String(), "stored")
}

func TestDescribeTemplateReportsProblems(t *testing.T) {
	path := writeTemplate(t, t.TempDir(), templateEntries(t, false))

	info, err := Describe(path)
	require.NoError(t, err)
	require.Equal(t, "com.webtoapp", info.Manifest.Package)
	require.NotEmpty(t, info.Problems)
	require.ErrorIs(t, info.Problems[0], ErrTableNotFirst)
	require.False(t, info.Signature.Verified())
}

func TestCompareArchives(t *testing.T) {
	b := newTestBuilder(t, true)

	first := b.Build(context.Background(), webConfig(), nil)
	require.Nil(t, first.Err, first.Message())
	a, err := Describe(first.OutputPath)
	require.NoError(t, err)

	same := CompareArchives(a, a)
	require.True(t, same.Same())

	cfg := webConfig()
	cfg.AppName = "Other App"
	cfg.VersionCode = 43
	second := b.Build(context.Background(), cfg, nil)
	require.Nil(t, second.Err, second.Message())
	c, err := Describe(second.OutputPath)
	require.NoError(t, err)

	diff := CompareArchives(a, c)
	require.False(t, diff.Same())

	differ := map[string]bool{}
	for _, f := range diff.Fields {
		if !f.Same {
			differ[f.Name] = true
		}
	}
	require.Equal(t, map[string]bool{"Version Code": true, "App Name": true}, differ)

	changed := map[string]bool{}
	for _, e := range diff.Entries {
		require.False(t, e.OnlyIn1 || e.OnlyIn2, e.Name)
		changed[e.Name] = true
	}
	require.True(t, changed[tableEntryName])
	require.True(t, changed[manifestEntryName])
	require.True(t, changed[ConfigEntryName])
	require.False(t, changed["classes.dex"])

	var out bytes.Buffer
	PrintArchiveDiff(diff, &out)
	require.Contains(t, out.String(), "App Name:        DIFFER")
	require.Contains(t, out.String(), "~ resources.arsc (CRC32")
}

func TestVerifyReportsEveryProblem(t *testing.T) {
	path := writeTemplate(t, t.TempDir(), templateEntries(t, false))

	err := Verify(context.Background(), path, webConfig())
	require.ErrorIs(t, err, ErrTableNotFirst)
	require.ErrorIs(t, err, ErrIdentityMismatch)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}
