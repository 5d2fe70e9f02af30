package apkbuilder

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// ArchiveDiff is the comparison of two described archives.
type ArchiveDiff struct {
	Path1   string
	Path2   string
	Fields  []FieldDiff
	Entries []EntryDiff
}

// FieldDiff represents a simple field comparison
type FieldDiff struct {
	Name   string
	Same   bool
	Value1 string
	Value2 string
}

// EntryDiff is an entry whose presence, method or content differs.
type EntryDiff struct {
	Name    string
	OnlyIn1 bool
	OnlyIn2 bool
	Method  FieldDiff
	CRC32   FieldDiff
}

// Same reports whether the archives agree on every compared field and entry.
func (d *ArchiveDiff) Same() bool {
	for _, f := range d.Fields {
		if !f.Same {
			return false
		}
	}

	return len(d.Entries) == 0
}

// CompareArchives compares identity, config, signer and entries of two
// archives.
func CompareArchives(a, b *ArchiveInfo) *ArchiveDiff {
	diff := &ArchiveDiff{Path1: a.Path, Path2: b.Path}

	m1, m2 := manifestFields(a), manifestFields(b)
	c1, c2 := configFields(a), configFields(b)
	diff.Fields = append(diff.Fields,
		compareField("Package", m1[0], m2[0]),
		compareField("Version Code", m1[1], m2[1]),
		compareField("Version Name", m1[2], m2[2]),
		compareField("App Name", c1[0], c2[0]),
		compareField("App Type", c1[1], c2[1]),
		compareField("Target", c1[2], c2[2]),
		compareField("Signer", signerName(a), signerName(b)),
		compareField("Entries", fmt.Sprintf("%d", len(a.Entries)), fmt.Sprintf("%d", len(b.Entries))),
	)

	e1, e2 := entryMap(a), entryMap(b)
	names := make(map[string]bool, len(e1)+len(e2))
	for n := range e1 {
		names[n] = true
	}
	for n := range e2 {
		names[n] = true
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, n := range sorted {
		x, ok1 := e1[n]
		y, ok2 := e2[n]

		switch {
		case !ok2:
			diff.Entries = append(diff.Entries, EntryDiff{Name: n, OnlyIn1: true})
		case !ok1:
			diff.Entries = append(diff.Entries, EntryDiff{Name: n, OnlyIn2: true})
		default:
			ed := EntryDiff{
				Name:   n,
				Method: compareField("Method", x.methodName(), y.methodName()),
				CRC32:  compareField("CRC32", fmt.Sprintf("%08x", x.CRC32), fmt.Sprintf("%08x", y.CRC32)),
			}
			if !ed.Method.Same || !ed.CRC32.Same {
				diff.Entries = append(diff.Entries, ed)
			}
		}
	}

	return diff
}

// compareField creates a FieldDiff for simple value comparison
func compareField(name, val1, val2 string) FieldDiff {
	return FieldDiff{
		Name:   name,
		Same:   val1 == val2,
		Value1: val1,
		Value2: val2,
	}
}

func manifestFields(i *ArchiveInfo) [3]string {
	if i.Manifest == nil {
		return [3]string{"-", "-", "-"}
	}

	return [3]string{i.Manifest.Package, fmt.Sprintf("%d", i.Manifest.VersionCode), i.Manifest.VersionName}
}

func configFields(i *ArchiveInfo) [3]string {
	if i.Config == nil {
		return [3]string{"-", "-", "-"}
	}

	return [3]string{i.Config.AppName, i.Config.AppType, i.Config.TargetURL}
}

func signerName(i *ArchiveInfo) string {
	if i.Signature == nil || len(i.Signature.Certificates) == 0 {
		return "-"
	}

	return i.Signature.Certificates[0].Subject.String()
}

func entryMap(i *ArchiveInfo) map[string]EntryInfo {
	m := make(map[string]EntryInfo, len(i.Entries))
	for _, e := range i.Entries {
		m[e.Name] = e
	}

	return m
}

// PrintArchiveDiff prints a diff to a writer
func PrintArchiveDiff(diff *ArchiveDiff, w io.Writer) {
	fprint(w, "Comparing:\n")
	fprint(w, "  APK 1: %s\n", diff.Path1)
	fprint(w, "  APK 2: %s\n", diff.Path2)
	fprint(w, "\n")

	for _, f := range diff.Fields {
		printFieldDiff(w, f)
	}

	if len(diff.Entries) == 0 {
		fprint(w, "\nEntries: SAME\n")

		return
	}

	fprint(w, "\nEntries:\n")
	for _, e := range diff.Entries {
		switch {
		case e.OnlyIn1:
			fprint(w, "  - %s (only in APK 1)\n", e.Name)
		case e.OnlyIn2:
			fprint(w, "  + %s (only in APK 2)\n", e.Name)
		default:
			var parts []string
			for _, f := range []FieldDiff{e.Method, e.CRC32} {
				if !f.Same {
					parts = append(parts, fmt.Sprintf("%s %s vs %s", f.Name, f.Value1, f.Value2))
				}
			}
			fprint(w, "  ~ %s (%s)\n", e.Name, strings.Join(parts, ", "))
		}
	}
}

// printFieldDiff prints a field diff
func printFieldDiff(w io.Writer, diff FieldDiff) {
	if diff.Same {
		fprint(w, "  %-16s SAME (%s)\n", diff.Name+":", diff.Value1)

		return
	}

	fprint(w, "  %-16s DIFFER\n", diff.Name+":")
	fprint(w, "    - APK 1: %s\n", diff.Value1)
	fprint(w, "    + APK 2: %s\n", diff.Value2)
}
