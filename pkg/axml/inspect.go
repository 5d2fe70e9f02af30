package axml

// Manifest is the identity read back from a compiled manifest.
type Manifest struct {
	Package     string
	VersionCode int
	VersionName string
	Permissions []string
	// Components lists android:name of every application component as stored.
	Components []string
	// Authorities lists provider authorities as stored.
	Authorities []string
}

// Inspect reads package, version and component names from data.
func Inspect(data []byte) (Manifest, error) {
	doc, err := parse(data)
	if err != nil {
		return Manifest{}, err
	}
	m, err := doc.manifest()
	if err != nil {
		return Manifest{}, err
	}

	var out Manifest
	if a, ok := m.attr("package", 0); ok {
		out.Package, _ = m.stringValue(a)
	}
	if a, ok := m.attr("versionCode", attrVersionCode); ok {
		out.VersionCode = int(int32(a.data()))
	}
	if a, ok := m.attr("versionName", attrVersionName); ok {
		out.VersionName, _ = m.stringValue(a)
	}

	for _, e := range doc.elements() {
		tag := e.name()
		a, ok := e.attr("name", attrName)
		if !ok {
			continue
		}
		v, _ := e.stringValue(a)

		switch {
		case componentTags[tag]:
			out.Components = append(out.Components, v)
			if tag == "provider" {
				if aa, ok := e.attr("authorities", attrAuthorities); ok {
					s, _ := e.stringValue(aa)
					out.Authorities = append(out.Authorities, s)
				}
			}
		case tag == "uses-permission" || tag == "uses-permission-sdk-23":
			out.Permissions = append(out.Permissions, v)
		}
	}

	return out, nil
}
