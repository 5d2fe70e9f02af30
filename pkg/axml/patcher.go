package axml

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the longest package or version name accepted, in characters.
const MaxNameLength = 255

// componentTags hold android:name class references that may be relative to
// the manifest package.
var componentTags = map[string]bool{
	"application":    true,
	"activity":       true,
	"activity-alias": true,
	"service":        true,
	"receiver":       true,
	"provider":       true,
}

// permissionTags hold android:name permission identifiers.
var permissionTags = map[string]bool{
	"permission":             true,
	"permission-tree":        true,
	"permission-group":       true,
	"uses-permission":        true,
	"uses-permission-sdk-23": true,
}

// Patcher rewrites identity fields of a compiled manifest. The zero value is
// ready to use.
type Patcher struct{}

// PatchPackageName sets <manifest package> to name. Component class names
// relative to the old package are made absolute so they keep resolving, and
// provider authorities and permissions under the old package move to the new
// one.
func (Patcher) PatchPackageName(data []byte, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	doc, err := parse(data)
	if err != nil {
		return nil, err
	}
	m, err := doc.manifest()
	if err != nil {
		return nil, err
	}
	pkgAttr, ok := m.attr("package", 0)
	if !ok {
		return nil, fmt.Errorf("%w: manifest package", ErrAttributeNotFound)
	}
	oldPkg, _ := m.stringValue(pkgAttr)
	if oldPkg == name {
		return doc.bytes(), nil
	}

	idx, err := doc.pool.add(name)
	if err != nil {
		return nil, fmt.Errorf("failed to store package name: %w", err)
	}
	pkgAttr.setString(idx)

	for _, e := range doc.elements() {
		tag := e.name()
		switch {
		case componentTags[tag]:
			if err := e.rewrite("name", attrName, func(v string) string { return qualify(oldPkg, v) }); err != nil {
				return nil, err
			}
			if tag == "activity-alias" {
				if err := e.rewrite("targetActivity", attrTargetActivity, func(v string) string { return qualify(oldPkg, v) }); err != nil {
					return nil, err
				}
			}
			if tag == "provider" {
				if err := e.rewrite("authorities", attrAuthorities, func(v string) string { return moveAuthorities(oldPkg, name, v) }); err != nil {
					return nil, err
				}
			}
		case permissionTags[tag]:
			if err := e.rewrite("name", attrName, func(v string) string { return movePrefix(oldPkg, name, v) }); err != nil {
				return nil, err
			}
		}
	}

	return doc.bytes(), nil
}

// PatchVersion sets android:versionCode and android:versionName.
func (Patcher) PatchVersion(data []byte, code int, name string) ([]byte, error) {
	if code < 1 || code > math.MaxInt32 {
		return nil, fmt.Errorf("%w: version code %d", ErrInvalidName, code)
	}
	if err := checkName(name); err != nil {
		return nil, err
	}

	doc, err := parse(data)
	if err != nil {
		return nil, err
	}
	m, err := doc.manifest()
	if err != nil {
		return nil, err
	}

	codeAttr, ok := m.attr("versionCode", attrVersionCode)
	if !ok {
		return nil, fmt.Errorf("%w: android:versionCode", ErrAttributeNotFound)
	}
	nameAttr, ok := m.attr("versionName", attrVersionName)
	if !ok {
		return nil, fmt.Errorf("%w: android:versionName", ErrAttributeNotFound)
	}

	idx, err := doc.pool.add(name)
	if err != nil {
		return nil, fmt.Errorf("failed to store version name: %w", err)
	}
	codeAttr.setInt(uint32(code))
	nameAttr.setString(idx)

	return doc.bytes(), nil
}

// rewrite applies fn to a string attribute and stores the result when it
// differs.
func (e element) rewrite(name string, resID uint32, fn func(string) string) error {
	a, ok := e.attr(name, resID)
	if !ok {
		return nil
	}
	v, ok := e.stringValue(a)
	if !ok {
		return nil
	}

	nv := fn(v)
	if nv == v {
		return nil
	}

	idx, err := e.doc.pool.add(nv)
	if err != nil {
		return fmt.Errorf("failed to store %q: %w", nv, err)
	}
	a.setString(idx)

	return nil
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if n := utf8.RuneCountInString(name); n > MaxNameLength {
		return fmt.Errorf("%w: %d characters, max %d", ErrNameTooLong, n, MaxNameLength)
	}

	return nil
}

// qualify resolves a class name the way the package manager does: a leading
// dot or a name without any dot is relative to pkg.
func qualify(pkg, class string) string {
	switch {
	case class == "":
		return class
	case strings.HasPrefix(class, "."):
		return pkg + class
	case !strings.Contains(class, "."):
		return pkg + "." + class
	default:
		return class
	}
}

func movePrefix(oldPkg, newPkg, v string) string {
	if v == oldPkg {
		return newPkg
	}
	if strings.HasPrefix(v, oldPkg+".") {
		return newPkg + strings.TrimPrefix(v, oldPkg)
	}

	return v
}

// moveAuthorities applies movePrefix to each ';'-separated authority.
func moveAuthorities(oldPkg, newPkg, v string) string {
	parts := strings.Split(v, ";")
	for i, p := range parts {
		parts[i] = movePrefix(oldPkg, newPkg, p)
	}

	return strings.Join(parts, ";")
}
