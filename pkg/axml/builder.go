package axml

import "fmt"

// AndroidNS is the namespace URI of android: attributes.
const AndroidNS = "http://schemas.android.com/apk/res/android"

// attrIDs are the framework resource IDs of the attributes the patcher
// reads. Builder places them first in the pool, mirrored by the resource map.
var attrIDs = []struct {
	name string
	id   uint32
}{
	{"name", attrName},
	{"authorities", attrAuthorities},
	{"targetActivity", attrTargetActivity},
	{"versionCode", attrVersionCode},
	{"versionName", attrVersionName},
}

// Attr is one attribute of a Builder element.
type Attr struct {
	Name  string
	Value string
	Int   int
	IsInt bool
}

// StringAttr is a string-valued attribute.
func StringAttr(name, value string) Attr { return Attr{Name: name, Value: value} }

// IntAttr is a decimal integer attribute.
func IntAttr(name string, value int) Attr { return Attr{Name: name, Int: value, IsInt: true} }

// Builder assembles compiled XML documents element by element. Attributes
// with a known framework ID are written in the android namespace.
type Builder struct {
	pool   *stringPool
	resIDs []uint32
	nodes  [][]byte
	err    error
}

// NewBuilder starts a document with a UTF-8 or UTF-16 string pool.
func NewBuilder(utf8 bool) *Builder {
	p := &stringPool{headerSize: poolHeaderSize}
	if utf8 {
		p.flags = flagUTF8
	}

	b := &Builder{pool: p}
	for _, a := range attrIDs {
		b.str(a.name)
		b.resIDs = append(b.resIDs, a.id)
	}

	return b
}

func (b *Builder) str(s string) uint32 {
	idx, err := b.pool.add(s)
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("add %q: %w", s, err)
	}

	return idx
}

func resIDOf(name string) uint32 {
	for _, a := range attrIDs {
		if a.name == name {
			return a.id
		}
	}

	return 0
}

// Start opens an element.
func (b *Builder) Start(tag string, attrs ...Attr) *Builder {
	size := 16 + startElementExtSize + attrSize*len(attrs)
	c := make([]byte, size)
	le.PutUint16(c[0:], typeStartElement)
	le.PutUint16(c[2:], 16)
	le.PutUint32(c[4:], uint32(size))
	le.PutUint32(c[12:], noEntry)
	le.PutUint32(c[16:], noEntry)
	le.PutUint32(c[20:], b.str(tag))
	le.PutUint16(c[24:], startElementExtSize)
	le.PutUint16(c[26:], attrSize)
	le.PutUint16(c[28:], uint16(len(attrs)))

	for i, a := range attrs {
		at := attribute(c[36+i*attrSize : 36+(i+1)*attrSize])
		ns := uint32(noEntry)
		if resIDOf(a.Name) != 0 {
			ns = b.str(AndroidNS)
		}
		le.PutUint32(at[0:], ns)
		le.PutUint32(at[4:], b.str(a.Name))
		if a.IsInt {
			at.setInt(uint32(a.Int))
		} else {
			at.setString(b.str(a.Value))
		}
	}
	b.nodes = append(b.nodes, c)

	return b
}

// End closes an element.
func (b *Builder) End(tag string) *Builder {
	c := make([]byte, 24)
	le.PutUint16(c[0:], typeEndElement)
	le.PutUint16(c[2:], 16)
	le.PutUint32(c[4:], 24)
	le.PutUint32(c[12:], noEntry)
	le.PutUint32(c[16:], noEntry)
	le.PutUint32(c[20:], b.str(tag))
	b.nodes = append(b.nodes, c)

	return b
}

// Bytes serializes the document.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}

	resMap := make([]byte, 8, 8+4*len(b.resIDs))
	le.PutUint16(resMap[0:], typeResourceMap)
	le.PutUint16(resMap[2:], 8)
	le.PutUint32(resMap[4:], uint32(8+4*len(b.resIDs)))
	for _, id := range b.resIDs {
		resMap = le.AppendUint32(resMap, id)
	}

	d := &document{
		headerSize: chunkHeaderSize,
		pool:       b.pool,
		poolIndex:  0,
		chunks:     append([][]byte{nil, resMap}, b.nodes...),
	}

	return d.bytes(), nil
}

// NewManifest builds a minimal manifest declaring pkg, its version and a
// launcher activity.
func NewManifest(pkg string, versionCode int, versionName string) ([]byte, error) {
	b := NewBuilder(true)
	b.Start("manifest",
		StringAttr("package", pkg),
		IntAttr("versionCode", versionCode),
		StringAttr("versionName", versionName),
	)
	b.Start("uses-permission", StringAttr("name", "android.permission.INTERNET")).End("uses-permission")
	b.Start("application", StringAttr("name", ".App"))
	b.Start("activity", StringAttr("name", ".MainActivity")).End("activity")
	b.End("application")
	b.End("manifest")

	return b.Bytes()
}
