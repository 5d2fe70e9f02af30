package icon

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	// Registered for image.Decode.
	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Shape selects how a variant is rendered.
type Shape int

const (
	// ShapePlain is a non-aspect-preserving scale to size×size.
	ShapePlain Shape = iota
	// ShapeRound is ShapePlain masked by a full anti-aliased circle.
	ShapeRound
	// ShapeForeground is the adaptive-icon foreground layer with safe zone.
	ShapeForeground
)

func (s Shape) String() string {
	switch s {
	case ShapePlain:
		return "plain"
	case ShapeRound:
		return "round"
	case ShapeForeground:
		return "foreground"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Variant is one rasterized output destined for an archive path.
type Variant struct {
	Path  string
	Size  int
	Shape Shape
}

const (
	// ForegroundSize is the resolution every adaptive foreground is rendered at
	// (108dp at xxxhdpi). Launchers downscale it for lower densities.
	ForegroundSize = 432

	// DefaultSize is used when no density token can be found in a path.
	DefaultSize = 96

	adaptiveViewport = 108
	adaptiveSafeZone = 72
	adaptiveMargin   = (adaptiveViewport - adaptiveSafeZone) / 2
)

// densities maps density tokens to launcher icon sizes, smallest to largest.
var densities = []struct {
	token string
	size  int
}{
	{"mdpi", 48},
	{"hdpi", 72},
	{"xhdpi", 96},
	{"xxhdpi", 144},
	{"xxxhdpi", 192},
}

// DensitySize returns the launcher icon size for an exact density token.
func DensitySize(token string) (int, bool) {
	for _, d := range densities {
		if d.token == token {
			return d.size, true
		}
	}

	return 0, false
}

// SizeForPath picks an icon size from the density qualifier of a resource path
// such as res/mipmap-xxhdpi-v4/ic_launcher.png. Paths without an exact
// qualifier fall back to substring inference and finally DefaultSize.
func SizeForPath(path string) int {
	dir := path
	if i := strings.LastIndexByte(dir, '/'); i >= 0 {
		dir = dir[:i]
	}
	if i := strings.LastIndexByte(dir, '/'); i >= 0 {
		dir = dir[i+1:]
	}

	for _, qualifier := range strings.Split(dir, "-") {
		if size, ok := DensitySize(qualifier); ok {
			return size
		}
	}

	return inferSize(path)
}

func inferSize(path string) int {
	switch {
	case strings.Contains(path, "xxxhdpi"):
		return 192
	case strings.Contains(path, "xxhdpi"):
		return 144
	case strings.Contains(path, "xhdpi"):
		return 96
	case strings.Contains(path, "hdpi"):
		return 72
	case strings.Contains(path, "mdpi"):
		return 48
	case strings.Contains(path, "ldpi"):
		return 36
	default:
		return DefaultSize
	}
}

// SafeZoneMargin is the transparent border on each side of a foreground layer
// of the given canvas size.
func SafeZoneMargin(size int) int {
	return int(math.Round(float64(size) * adaptiveMargin / adaptiveViewport))
}

// Load decodes an image file. PNG, JPEG, GIF, WebP and BMP are supported.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open icon: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads an image in any registered format.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode icon: %w", err)
	}

	return img, nil
}

// Plain scales src to size×size, ignoring its aspect ratio.
func Plain(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return dst
}

// Round scales src like Plain and keeps only the inscribed circle.
// Edge pixels get partial coverage from 4×4 supersampling.
func Round(src image.Image, size int) *image.RGBA {
	dst := Plain(src, size)

	const samples = 4

	r := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			inside := 0
			for sy := 0; sy < samples; sy++ {
				for sx := 0; sx < samples; sx++ {
					dx := float64(x) + (float64(sx)+0.5)/samples - r
					dy := float64(y) + (float64(sy)+0.5)/samples - r
					if dx*dx+dy*dy <= r*r {
						inside++
					}
				}
			}

			switch inside {
			case samples * samples:
				continue
			case 0:
				dst.SetRGBA(x, y, color.RGBA{})
			default:
				c := dst.RGBAAt(x, y)
				k := float64(inside) / (samples * samples)
				dst.SetRGBA(x, y, color.RGBA{
					R: uint8(math.Round(float64(c.R) * k)),
					G: uint8(math.Round(float64(c.G) * k)),
					B: uint8(math.Round(float64(c.B) * k)),
					A: uint8(math.Round(float64(c.A) * k)),
				})
			}
		}
	}

	return dst
}

// AdaptiveForeground centers src, scaled to the 72/108 safe zone, on a
// transparent size×size canvas.
func AdaptiveForeground(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))

	m := SafeZoneMargin(size)
	inner := image.Rect(m, m, size-m, size-m)
	draw.CatmullRom.Scale(dst, inner, src, src.Bounds(), draw.Over, nil)

	return dst
}

// Render produces the image for a variant.
func Render(src image.Image, v Variant) *image.RGBA {
	switch v.Shape {
	case ShapeRound:
		return Round(src, v.Size)
	case ShapeForeground:
		return AdaptiveForeground(src, v.Size)
	default:
		return Plain(src, v.Size)
	}
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer

	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	return buf.Bytes(), nil
}

// RenderPNG renders a variant and encodes it as PNG.
func RenderPNG(src image.Image, v Variant) ([]byte, error) {
	return EncodePNG(Render(src, v))
}
