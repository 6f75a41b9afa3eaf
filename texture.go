package mapview

import (
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// Texture mirrors a published raster on the GPU. Sync uploads only when a
// different raster is passed in, so polling Compositor.Image or a provider's
// Image every frame costs nothing while nothing was redrawn.
type Texture struct {
	mu  sync.Mutex
	src *image.NRGBA
	img *ebiten.Image
	buf []byte
}

// Sync returns a GPU image holding src, uploading it if src changed since the
// last call. The returned image is owned by the Texture and stays valid until
// the next Sync or Dispose. Empty rasters yield nil.
func (t *Texture) Sync(src *image.NRGBA) *ebiten.Image {
	t.mu.Lock()
	defer t.mu.Unlock()
	if src == t.src {
		return t.img
	}
	t.src = src
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w == 0 || h == 0 {
		t.deallocate()
		return nil
	}
	if t.img == nil || t.img.Bounds().Dx() != w || t.img.Bounds().Dy() != h {
		t.deallocate()
		t.img = ebiten.NewImage(w, h)
	}
	t.buf = premultiply(t.buf, src)
	t.img.WritePixels(t.buf)
	return t.img
}

// Dispose frees the GPU image.
func (t *Texture) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.src = nil
	t.deallocate()
}

func (t *Texture) deallocate() {
	if t.img != nil {
		t.img.Deallocate()
		t.img = nil
	}
}

// premultiply converts src into the premultiplied RGBA layout WritePixels
// expects, reusing buf when it is large enough.
func premultiply(buf []byte, src *image.NRGBA) []byte {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	n := w * h * 4
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	for y := 0; y < h; y++ {
		so := src.PixOffset(src.Rect.Min.X, src.Rect.Min.Y+y)
		row := src.Pix[so : so+w*4]
		out := buf[y*w*4 : (y+1)*w*4]
		for i := 0; i < len(row); i += 4 {
			a := uint32(row[i+3])
			out[i+0] = uint8((uint32(row[i+0])*a + 127) / 255)
			out[i+1] = uint8((uint32(row[i+1])*a + 127) / 255)
			out[i+2] = uint8((uint32(row[i+2])*a + 127) / 255)
			out[i+3] = row[i+3]
		}
	}
	return buf
}
