package mapview

import (
	"image"
	"math"
)

// PixelFilter transforms a raster in place.
type PixelFilter interface {
	Apply(img *image.NRGBA)
}

// MirrorFilter flips a raster horizontally.
type MirrorFilter struct{}

// Apply swaps pixels around the vertical center line.
func (MirrorFilter) Apply(img *image.NRGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for l, r := 0, (w-1)*4; l < r; l, r = l+4, r-4 {
			row[l+0], row[r+0] = row[r+0], row[l+0]
			row[l+1], row[r+1] = row[r+1], row[l+1]
			row[l+2], row[r+2] = row[r+2], row[l+2]
			row[l+3], row[r+3] = row[r+3], row[l+3]
		}
	}
}

// AlphaFilter scales every pixel's alpha by Alpha/255.
type AlphaFilter struct {
	Alpha uint8
}

// Apply scales alpha. 255 leaves the raster untouched.
func (f AlphaFilter) Apply(img *image.NRGBA) {
	if f.Alpha == 0xff {
		return
	}
	a := uint32(f.Alpha)
	forEachPixel(img, func(p []uint8) {
		p[3] = uint8((uint32(p[3])*a + 127) / 255)
	})
}

// lumaAlpha maps a luma value to an opacity: a square-root curve so dim
// pixels fade out quickly while bright ones stay nearly opaque.
var lumaAlpha = func() (t [256]uint8) {
	for i := range t {
		t[i] = uint8(math.Round(math.Sqrt(float64(i)/255) * 255))
	}
	return t
}()

// Luma returns the fixed-point perceptual brightness of an RGB triple.
func Luma(r, g, b uint8) uint8 {
	return uint8((77*uint32(r) + 150*uint32(g) + 29*uint32(b)) >> 8)
}

// TranslucencyFilter derives opacity from brightness, for effects such as
// fire and glows that should fade with their own darkness.
type TranslucencyFilter struct{}

// Apply multiplies alpha by the luma-derived opacity.
func (TranslucencyFilter) Apply(img *image.NRGBA) {
	forEachPixel(img, func(p []uint8) {
		f := uint32(lumaAlpha[Luma(p[0], p[1], p[2])])
		p[3] = uint8((uint32(p[3])*f + 127) / 255)
	})
}

// LightingFilter applies a day/twilight/night transform.
type LightingFilter struct {
	Lighting Lighting
}

// Apply darkens the raster.
func (f LightingFilter) Apply(img *image.NRGBA) {
	w := img.Rect.Dx() * 4
	for y := 0; y < img.Rect.Dy(); y++ {
		applyLighting(img.Pix[y*img.Stride:y*img.Stride+w], f.Lighting)
	}
}

func forEachPixel(img *image.NRGBA, fn func(p []uint8)) {
	w := img.Rect.Dx() * 4
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for i := 0; i < w; i += 4 {
			fn(row[i : i+4 : i+4])
		}
	}
}

// PostChain is the fixed post-processing sequence every frame provider runs
// on a source frame: mirror, global alpha, brightness translucency, lighting.
// The zero value changes nothing.
type PostChain struct {
	Mirror bool
	// Transparency lowers the global alpha: 0 is opaque, 255 invisible.
	Transparency uint8
	Translucent  bool
	Lit          bool
	Lighting     Lighting
}

// Filters returns the active filters in application order.
func (pc PostChain) Filters() []PixelFilter {
	var fs []PixelFilter
	if pc.Mirror {
		fs = append(fs, MirrorFilter{})
	}
	if pc.Transparency != 0 {
		fs = append(fs, AlphaFilter{Alpha: 0xff - pc.Transparency})
	}
	if pc.Translucent {
		fs = append(fs, TranslucencyFilter{})
	}
	if pc.Lit && pc.Lighting != LightingDay {
		fs = append(fs, LightingFilter{Lighting: pc.Lighting})
	}
	return fs
}

// Apply runs the chain over img.
func (pc PostChain) Apply(img *image.NRGBA) {
	for _, f := range pc.Filters() {
		f.Apply(img)
	}
}
