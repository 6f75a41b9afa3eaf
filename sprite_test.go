package mapview

import (
	"image"
	"image/color"
	"sync"
	"testing"
)

func frameOf(w, h, cx, cy int, c color.NRGBA) SpriteFrame {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.SetNRGBA(0, 0, c)
	return SpriteFrame{Image: img, CenterX: cx, CenterY: cy}
}

// stripAtlas builds an atlas with cycles cycles of n frames each, all frames
// a 4x6 image anchored at (1,5) with a red top-left pixel.
func stripAtlas(cycles, n int) *SpriteAtlas {
	a := &SpriteAtlas{}
	for c := 0; c < cycles; c++ {
		var seq []int
		for i := 0; i < n; i++ {
			seq = append(seq, len(a.Frames))
			a.Frames = append(a.Frames, frameOf(4, 6, 1, 5, red))
		}
		a.Cycles = append(a.Cycles, seq)
	}
	return a
}

func TestSpriteFrameRange(t *testing.T) {
	p, err := NewSpriteProvider(stripAtlas(1, 8), SpriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	p.SetLooping(false)
	p.SetFrameRange(2, 5)
	p.ResetFrame()
	if p.FrameIndex() != 2 {
		t.Fatalf("FrameIndex after reset = %d, want 2", p.FrameIndex())
	}
	for i := 0; i < 3; i++ {
		if !p.AdvanceFrame() {
			t.Fatalf("advance %d returned false", i+1)
		}
	}
	if p.FrameIndex() != 5 {
		t.Fatalf("FrameIndex = %d, want 5", p.FrameIndex())
	}
	for i := 0; i < 2; i++ {
		if p.AdvanceFrame() {
			t.Errorf("advance past end frame returned true")
		}
	}
	if p.FrameIndex() != 5 {
		t.Errorf("FrameIndex = %d after end, want 5", p.FrameIndex())
	}

	p.SetLooping(true)
	if !p.AdvanceFrame() || p.FrameIndex() != 2 {
		t.Errorf("looping advance: FrameIndex = %d, want 2", p.FrameIndex())
	}
}

func TestSpriteEndNotBeforeStart(t *testing.T) {
	p, _ := NewSpriteProvider(stripAtlas(1, 8), SpriteOptions{})
	p.SetFrameRange(5, 2)
	if s, e := p.FrameRange(); s != 5 || e != 5 {
		t.Errorf("FrameRange = (%d,%d), want (5,5)", s, e)
	}
	p.SetStartFrame(7)
	if s, e := p.FrameRange(); s != 7 || e != 7 {
		t.Errorf("FrameRange = (%d,%d), want (7,7)", s, e)
	}
	p.SetStartFrame(100)
	if s, _ := p.FrameRange(); s != 7 {
		t.Errorf("start = %d, want clamped to 7", s)
	}
	p.SetFrameRange(0, -1)
	if _, e := p.FrameRange(); e != 7 {
		t.Errorf("open end = %d, want 7", e)
	}
}

func TestSpriteFrameRangeSurvivesCycleChange(t *testing.T) {
	a := stripAtlas(1, 8)
	a.Cycles = append(a.Cycles, []int{0, 1, 2})
	p, err := NewSpriteProvider(a, SpriteOptions{Orientations: map[Direction]int{DirS: 0, DirN: 1}})
	if err != nil {
		t.Fatal(err)
	}
	p.SetFrameRange(2, 5)

	p.SetCycle(1)
	if s, e := p.FrameRange(); s != 2 || e != 2 {
		t.Errorf("FrameRange in short cycle = (%d,%d), want (2,2)", s, e)
	}
	p.SetCycle(0)
	if s, e := p.FrameRange(); s != 2 || e != 5 {
		t.Errorf("FrameRange after switching back = (%d,%d), want (2,5)", s, e)
	}

	p.SetDirection(DirN)
	p.SetDirection(DirS)
	if s, e := p.FrameRange(); s != 2 || e != 5 {
		t.Errorf("FrameRange after turning = (%d,%d), want (2,5)", s, e)
	}
	if p.FrameIndex() != 2 {
		t.Errorf("FrameIndex = %d, want 2", p.FrameIndex())
	}
}

func TestSpriteDirectionResolution(t *testing.T) {
	orient := map[Direction]int{DirS: 0, DirW: 1, DirN: 2, DirE: 3}
	p, err := NewSpriteProvider(stripAtlas(4, 2), SpriteOptions{Orientations: orient, Direction: DirSSW})
	if err != nil {
		t.Fatal(err)
	}
	if p.Direction() != DirS {
		t.Errorf("initial direction = %d, want DirS", p.Direction())
	}
	tests := []struct {
		in, want Direction
	}{
		{DirW, DirW},
		{DirSSW, DirS},
		{DirWSW, DirW},
		{DirSW, DirW}, // tie goes clockwise
		{DirSSE, DirS},
		{DirNE, DirE},
	}
	for _, tt := range tests {
		if got := p.ResolveDirection(tt.in); got != tt.want {
			t.Errorf("ResolveDirection(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if got := p.SetDirection(DirN); got != DirN || p.Cycle() != 2 {
		t.Errorf("SetDirection(N) = %d cycle %d, want DirN cycle 2", got, p.Cycle())
	}
}

func TestSpriteImageAndAnchor(t *testing.T) {
	p, _ := NewSpriteProvider(stripAtlas(1, 1), SpriteOptions{})
	img := p.Image()
	if img.Rect.Size() != image.Pt(4, 6) {
		t.Fatalf("size = %v, want (4,6)", img.Rect.Size())
	}
	if p.Anchor() != image.Pt(-1, -5) {
		t.Errorf("Anchor = %v, want (-1,-5)", p.Anchor())
	}
	wantPixel(t, img, 0, 0, transparent)

	p.Activate()
	wantPixel(t, p.Image(), 0, 0, red)

	p.SetMirror(true)
	if p.Anchor() != image.Pt(-3, -5) {
		t.Errorf("mirrored Anchor = %v, want (-3,-5)", p.Anchor())
	}
	wantPixel(t, p.Image(), 3, 0, red)
	wantPixel(t, p.Image(), 0, 0, transparent)

	p.Deactivate()
	wantPixel(t, p.Image(), 3, 0, transparent)
	p.SetActiveIgnored(true)
	wantPixel(t, p.Image(), 3, 0, red)
}

func TestSpriteBoundsCoverCycle(t *testing.T) {
	a := &SpriteAtlas{
		Frames: []SpriteFrame{
			frameOf(4, 4, 0, 0, red),
			frameOf(2, 2, 4, 4, green),
		},
		Cycles: [][]int{{0, 1}},
	}
	p, _ := NewSpriteProvider(a, SpriteOptions{})
	p.Activate()
	if p.Image().Rect.Size() != image.Pt(8, 8) || p.Anchor() != image.Pt(-4, -4) {
		t.Fatalf("bounds = %v at %v, want 8x8 at (-4,-4)", p.Image().Rect.Size(), p.Anchor())
	}
	wantPixel(t, p.Image(), 4, 4, red)
	p.AdvanceFrame()
	if p.Image().Rect.Size() != image.Pt(8, 8) {
		t.Error("output size should not change between frames")
	}
	wantPixel(t, p.Image(), 0, 0, green)
	wantPixel(t, p.Image(), 4, 4, transparent)
}

func TestSpriteCloseReleasesHandle(t *testing.T) {
	cache := NewSharedCache()
	h, err := cache.Acquire(CacheSprites, "MBAT", func() (any, error) { return stripAtlas(1, 2), nil })
	if err != nil {
		t.Fatal(err)
	}
	atlas, _ := HandlePayload[*SpriteAtlas](h)
	p, err := NewSpriteProvider(atlas, SpriteOptions{Handle: h})
	if err != nil {
		t.Fatal(err)
	}
	p.Activate()
	p.Close()
	p.Close()
	if cache.Contains(CacheSprites, "MBAT") {
		t.Error("closing the provider should release the atlas")
	}
	if p.Image().Rect.Dx() != 0 || p.AdvanceFrame() {
		t.Error("closed provider should be empty and not advance")
	}
}

func TestSpriteEmptyAtlas(t *testing.T) {
	if _, err := NewSpriteProvider(&SpriteAtlas{}, SpriteOptions{}); err == nil {
		t.Error("expected error for atlas without cycles")
	}
}

func TestSpriteConcurrentReaders(t *testing.T) {
	p, _ := NewSpriteProvider(stripAtlas(1, 4), SpriteOptions{Looping: true})
	p.Activate()

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < 200; i++ {
			p.AdvanceFrame()
			p.SetMirror(i%2 == 0)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				img := p.Image()
				if img.Rect.Size() != image.Pt(4, 6) {
					t.Errorf("size = %v, want (4,6)", img.Rect.Size())
					return
				}
				reds := 0
				for x := 0; x < 4; x++ {
					if img.NRGBAAt(x, 0) == red {
						reds++
					}
				}
				if reds != 1 {
					t.Errorf("raster has %d red pixels in row 0, want 1", reds)
					return
				}
				if at := p.Anchor(); at != image.Pt(-1, -5) && at != image.Pt(-3, -5) {
					t.Errorf("Anchor = %v", at)
					return
				}
			}
		}()
	}
	wg.Wait()
}
