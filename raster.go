package mapview

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/draw"
)

// NewRaster allocates a transparent raster of the given size. Negative sizes
// are clamped to zero; sizes above MaxRasterPixels fail.
func NewRaster(w, h int) (*image.NRGBA, error) {
	if err := checkRasterSize(w, h); err != nil {
		return nil, err
	}
	return image.NewNRGBA(image.Rect(0, 0, max(w, 0), max(h, 0))), nil
}

func checkRasterSize(w, h int) error {
	if w > 0 && h > 0 && (w > MaxRasterPixels/h) {
		return fmt.Errorf("mapview: %dx%d: %w", w, h, ErrRasterTooLarge)
	}
	return nil
}

// emptyRaster is the zero-size raster handed out by placeholders.
var emptyRaster = image.NewNRGBA(image.Rectangle{})

// placeholderTile returns the opaque gray tile substituted for frame indices
// that can't be resolved. The result is shared and must not be modified.
var placeholderTile = sync.OnceValue(func() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, TileSize, TileSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}), image.Point{}, draw.Src)
	return img
})

// cloneRaster returns a deep copy of img with a zero origin.
func cloneRaster(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
	copyRaster(out, img)
	return out
}

// ensureScratch returns buf when it already has the requested size, or a new
// raster otherwise. Scratch rasters are private and reused between redraws.
func ensureScratch(buf *image.NRGBA, w, h int) *image.NRGBA {
	if buf != nil && buf.Rect.Dx() == w && buf.Rect.Dy() == h {
		return buf
	}
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

// normalizeTile returns src when it is already a zero-origin TileSize square,
// otherwise a TileSize copy of its top-left region padded with transparency.
func normalizeTile(src *image.NRGBA) *image.NRGBA {
	if src.Rect == image.Rect(0, 0, TileSize, TileSize) && src.Stride == TileSize*4 {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, TileSize, TileSize))
	copyRaster(dst, src)
	return dst
}

// copyRaster copies src into dst row by row. Both are clipped to the smaller
// size; dst must have a zero origin.
func copyRaster(dst, src *image.NRGBA) {
	w := min(dst.Rect.Dx(), src.Rect.Dx()) * 4
	h := min(dst.Rect.Dy(), src.Rect.Dy())
	for y := 0; y < h; y++ {
		so := src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[so:so+w])
	}
}

// blitOver composites src over dst with its top-left corner at at, using
// straight (non-premultiplied) alpha. Pixels outside dst are dropped.
func blitOver(dst, src *image.NRGBA, at image.Point) {
	r := image.Rectangle{Min: at, Max: at.Add(src.Rect.Size())}.Intersect(dst.Rect)
	if r.Empty() {
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		do := dst.PixOffset(r.Min.X, y)
		so := src.PixOffset(src.Rect.Min.X+r.Min.X-at.X, src.Rect.Min.Y+y-at.Y)
		for x := r.Min.X; x < r.Max.X; x, do, so = x+1, do+4, so+4 {
			s := src.Pix[so : so+4 : so+4]
			d := dst.Pix[do : do+4 : do+4]
			switch sa := uint32(s[3]); {
			case sa == 0:
			case sa == 0xff || d[3] == 0:
				copy(d, s)
			default:
				da := uint32(d[3]) * (0xff - sa) / 0xff
				oa := sa + da
				for c := 0; c < 3; c++ {
					d[c] = uint8((uint32(s[c])*sa + uint32(d[c])*da + oa/2) / oa)
				}
				d[3] = uint8(oa)
			}
		}
	}
}
