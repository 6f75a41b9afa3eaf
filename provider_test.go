package mapview

import (
	"errors"
	"testing"
)

func TestNullProvider(t *testing.T) {
	var p FrameProvider = NullProvider{}
	p.Activate()
	if p.IsActive() || p.AdvanceFrame() || p.FrameIndex() != 0 {
		t.Error("NullProvider should do nothing")
	}
	if !p.Image().Rect.Empty() {
		t.Error("NullProvider image should be empty")
	}
	p.Close()
}

func TestLazyProviderBuildsOnDemand(t *testing.T) {
	built := 0
	l := NewLazyProvider(func() (FrameProvider, error) {
		built++
		return NewSpriteProvider(stripAtlas(1, 3), SpriteOptions{})
	})
	l.SetLooping(true)
	if l.Instantiated() || built != 0 {
		t.Fatal("factory should not run before first use")
	}
	if !l.IsLooping() {
		t.Error("looping set before build should be reported")
	}
	if l.FrameIndex() != 0 || !l.Image().Rect.Empty() {
		t.Error("unbuilt provider should behave like NullProvider")
	}

	l.Activate()
	if !l.Instantiated() || built != 1 {
		t.Fatalf("Instantiated = %t built = %d", l.Instantiated(), built)
	}
	if !l.IsActive() || !l.IsLooping() {
		t.Error("built provider should be active and looping")
	}
	for i := 0; i < 3; i++ {
		if !l.AdvanceFrame() {
			t.Fatalf("looping advance %d returned false", i+1)
		}
	}
	if l.FrameIndex() != 0 {
		t.Errorf("FrameIndex = %d, want 0 after wrap", l.FrameIndex())
	}
	l.ResetFrame()
	if built != 1 {
		t.Errorf("factory ran %d times, want 1", built)
	}

	l.Close()
	if l.Instantiated() || l.AdvanceFrame() {
		t.Error("closed lazy provider should fall back to NullProvider")
	}
}

func TestLazyProviderFactoryError(t *testing.T) {
	calls := 0
	l := NewLazyProvider(func() (FrameProvider, error) {
		calls++
		return nil, errors.New("decode failed")
	})
	l.Activate()
	l.AdvanceFrame()
	if l.Instantiated() {
		t.Error("failed factory should leave the placeholder")
	}
	if calls != 1 {
		t.Errorf("factory called %d times, want 1", calls)
	}
}
