package mapview

import (
	"image"
	"testing"
)

func twoPartAtlas() *SpriteAtlas {
	return &SpriteAtlas{
		Frames: []SpriteFrame{
			frameOf(4, 4, 0, 0, red),
			frameOf(2, 2, -6, -6, green),
		},
		Cycles: [][]int{{0, 0, 0, 0}, {1, 1}},
	}
}

func TestEffectMultiPartBounds(t *testing.T) {
	p, err := NewEffectProvider(twoPartAtlas(), EffectOptions{Cycles: []int{0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	p.Activate()
	if sz := p.Image().Rect.Size(); sz != image.Pt(4, 4) {
		t.Fatalf("single-part size = %v, want (4,4)", sz)
	}

	p.SetMultiPart(true)
	if !p.MultiPart() {
		t.Fatal("MultiPart should be on")
	}
	if sz := p.Image().Rect.Size(); sz != image.Pt(8, 8) {
		t.Fatalf("multi-part size = %v, want (8,8)", sz)
	}
	if p.Anchor() != image.Pt(0, 0) {
		t.Errorf("Anchor = %v, want (0,0)", p.Anchor())
	}
	wantPixel(t, p.Image(), 0, 0, red)
	wantPixel(t, p.Image(), 6, 6, green)
}

func TestEffectFrameCap(t *testing.T) {
	p, _ := NewEffectProvider(twoPartAtlas(), EffectOptions{Cycles: []int{0}, FrameCap: 2})
	for i := 0; i < 2; i++ {
		if !p.AdvanceFrame() {
			t.Fatalf("advance %d returned false", i+1)
		}
	}
	if p.AdvanceFrame() {
		t.Error("advance past the cap should return false")
	}
	if p.FrameIndex() != 2 {
		t.Errorf("FrameIndex = %d, want 2", p.FrameIndex())
	}

	p.SetLooping(true)
	if !p.AdvanceFrame() || p.FrameIndex() != 0 {
		t.Errorf("looping advance: FrameIndex = %d, want 0", p.FrameIndex())
	}

	p.SetFrameCap(0)
	if p.FrameCap() != 3 {
		t.Errorf("default FrameCap = %d, want 3", p.FrameCap())
	}
}

func TestEffectResetFrame(t *testing.T) {
	p, _ := NewEffectProvider(twoPartAtlas(), EffectOptions{})
	p.AdvanceFrame()
	p.AdvanceFrame()
	p.ResetFrame()
	if p.FrameIndex() != 0 {
		t.Errorf("FrameIndex after reset = %d, want 0", p.FrameIndex())
	}
}

func TestEffectFadeTo(t *testing.T) {
	p, _ := NewEffectProvider(twoPartAtlas(), EffectOptions{Looping: true})
	p.Activate()
	if p.Alpha() != 0xff {
		t.Fatalf("initial Alpha = %d, want 255", p.Alpha())
	}

	p.FadeTo(0, 4)
	if !p.Fading() {
		t.Fatal("Fading should be true")
	}
	p.AdvanceFrame()
	p.AdvanceFrame()
	if a := p.Alpha(); a < 126 || a > 129 {
		t.Errorf("Alpha halfway = %d, want about 128", a)
	}
	p.AdvanceFrame()
	p.AdvanceFrame()
	if p.Fading() {
		t.Error("fade should be finished")
	}
	if p.Alpha() != 0 {
		t.Errorf("Alpha = %d, want 0", p.Alpha())
	}
	wantPixel(t, p.Image(), 0, 0, transparent)

	p.FadeTo(200, 0)
	if p.Alpha() != 200 || p.Fading() {
		t.Errorf("immediate FadeTo: Alpha = %d fading = %t", p.Alpha(), p.Fading())
	}
}

func TestEffectFadeFinishesAtFrameCap(t *testing.T) {
	p, _ := NewEffectProvider(twoPartAtlas(), EffectOptions{Cycles: []int{0}, FrameCap: 2})
	p.Activate()
	p.FadeTo(0, 10)
	p.AdvanceFrame()
	p.AdvanceFrame()
	if !p.Fading() {
		t.Fatal("fade should still be running before the cap")
	}
	if p.AdvanceFrame() {
		t.Fatal("advance past the cap should return false")
	}
	if p.Fading() {
		t.Error("fade should finish once the effect stops")
	}
	if p.Alpha() != 0 {
		t.Errorf("Alpha = %d, want 0", p.Alpha())
	}
	wantPixel(t, p.Image(), 0, 0, transparent)
}

func TestEffectSetAlphaCancelsFade(t *testing.T) {
	p, _ := NewEffectProvider(twoPartAtlas(), EffectOptions{Looping: true})
	p.FadeTo(0, 10)
	p.SetAlpha(50)
	if p.Fading() {
		t.Error("SetAlpha should cancel the fade")
	}
	p.AdvanceFrame()
	if p.Alpha() != 50 {
		t.Errorf("Alpha = %d, want 50", p.Alpha())
	}
}

func TestEffectLighting(t *testing.T) {
	a := &SpriteAtlas{
		Frames: []SpriteFrame{{Image: solidFrame(red)}},
		Cycles: [][]int{{0}},
	}
	p, _ := NewEffectProvider(a, EffectOptions{})
	p.Activate()
	p.SetLighting(LightingNight, true)
	wantPixel(t, p.Image(), 1, 1, LightPixel(red, LightingNight))
	p.SetLighting(LightingNight, false)
	wantPixel(t, p.Image(), 1, 1, red)
}
