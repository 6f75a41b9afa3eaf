package mapview

import (
	"errors"
	"image"
	"testing"
)

func TestTileOverlayIndex(t *testing.T) {
	tests := []struct {
		mask uint8
		want int
	}{
		{0, 0},
		{1, 0}, // bit 0 is unused
		{1 << 1, 1},
		{1<<3 | 1<<5, 3},
		{1 << 7, 7},
	}
	for _, tt := range tests {
		tile := Tile{OverlayMask: tt.mask}
		if got := tile.OverlayIndex(); got != tt.want {
			t.Errorf("OverlayIndex(%08b) = %d, want %d", tt.mask, got, tt.want)
		}
	}
}

func TestTileAdvanceWraps(t *testing.T) {
	tile := Tile{Frames: []int{4, 5, 6}}
	want := []int{4, 5, 6, 4}
	for i, w := range want {
		if got := tile.Frame(); got != w {
			t.Errorf("step %d: Frame = %d, want %d", i, got, w)
		}
		tile.advance()
	}

	static := Tile{Frames: []int{2}}
	static.advance()
	if static.Animated() || static.Frame() != 2 {
		t.Errorf("static tile Frame = %d, Animated = %t", static.Frame(), static.Animated())
	}
	if (&Tile{}).Frame() != -1 {
		t.Error("tile without frames should report -1")
	}
}

func TestTilesetValidate(t *testing.T) {
	ts := gridTileset(2, 1)
	ts.Columns = 0
	if err := ts.validate("x"); !errors.Is(err, ErrInvalidTileset) {
		t.Errorf("validate(empty grid) = %v, want ErrInvalidTileset", err)
	}

	small := image.NewNRGBA(image.Rect(10, 10, 20, 20))
	small.SetNRGBA(10, 10, red)
	ts = gridTileset(1, 1, small)
	if err := ts.validate("x"); err != nil {
		t.Fatal(err)
	}
	if ts.Frames[0] != small {
		t.Fatal("validate should not touch the frames")
	}
	ts.normalize()
	f := ts.Frames[0]
	if f.Rect != image.Rect(0, 0, TileSize, TileSize) {
		t.Fatalf("normalized rect = %v", f.Rect)
	}
	wantPixel(t, f, 0, 0, red)
	wantPixel(t, f, 30, 30, transparent)
}

func TestTilesetTileAtWraps(t *testing.T) {
	ts := gridTileset(2, 2)
	for i := range ts.Tiles {
		ts.Tiles[i].Frames = []int{i}
	}
	if got := ts.tileAt(3, 2).Frame(); got != 1 {
		t.Errorf("tileAt(3,2) frame = %d, want 1", got)
	}
}

func TestNewRasterTooLarge(t *testing.T) {
	if _, err := NewRaster(1<<14, 1<<14); !errors.Is(err, ErrRasterTooLarge) {
		t.Errorf("NewRaster = %v, want ErrRasterTooLarge", err)
	}
	img, err := NewRaster(-5, 3)
	if err != nil || !img.Rect.Empty() {
		t.Errorf("NewRaster(-5,3) = %v, %v", img.Rect, err)
	}
}

func TestBlitOverStraightAlpha(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	dst.SetNRGBA(0, 0, red)
	dst.SetNRGBA(1, 0, red)

	src := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	src.SetNRGBA(0, 0, blue)
	src.Pix[4+2], src.Pix[4+3] = 255, 128 // half-covered blue
	src.Pix[8+1], src.Pix[8+3] = 200, 77  // onto transparent dst

	blitOver(dst, src, image.Point{})
	wantPixel(t, dst, 0, 0, blue)
	if got := dst.NRGBAAt(1, 0); got.A != 255 || got.R < 120 || got.R > 130 || got.B < 125 || got.B > 131 {
		t.Errorf("half blend = %v", got)
	}
	if got := dst.NRGBAAt(2, 0); got.G != 200 || got.A != 77 {
		t.Errorf("copy onto transparent = %v, want exact source", got)
	}
}

func TestBlitOverClips(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src := solidFrame(green)
	blitOver(dst, src, image.Pt(1, 1))
	wantPixel(t, dst, 1, 1, green)
	wantPixel(t, dst, 0, 0, transparent)
	blitOver(dst, src, image.Pt(-TileSize, 0))
	wantPixel(t, dst, 0, 1, transparent)
}

func TestMix8(t *testing.T) {
	if mix8(10, 200, 0) != 10 || mix8(10, 200, 255) != 200 {
		t.Error("mix8 endpoints should be exact")
	}
	if got := mix8(0, 255, 128); got != 128 {
		t.Errorf("mix8(0,255,128) = %d, want 128", got)
	}
}
