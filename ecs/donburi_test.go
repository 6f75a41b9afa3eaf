package ecs

import (
	"image"
	"testing"

	"github.com/phanxgames/mapview"

	"github.com/yohamta/donburi"
)

func testSprite(t *testing.T, frames int, looping bool) *mapview.SpriteProvider {
	t.Helper()
	a := &mapview.SpriteAtlas{Cycles: [][]int{{}}}
	for i := 0; i < frames; i++ {
		a.Frames = append(a.Frames, mapview.SpriteFrame{Image: image.NewNRGBA(image.Rect(0, 0, 2, 2))})
		a.Cycles[0] = append(a.Cycles[0], i)
	}
	p, err := mapview.NewSpriteProvider(a, mapview.SpriteOptions{Looping: looping})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestAdvanceAnimations(t *testing.T) {
	world := donburi.NewWorld()
	p := testSprite(t, 3, true)
	NewAnimation(world, p)

	AdvanceAnimations(world)
	AdvanceAnimations(world)
	if p.FrameIndex() != 2 {
		t.Errorf("FrameIndex = %d, want 2", p.FrameIndex())
	}
	AdvanceAnimations(world)
	if p.FrameIndex() != 0 {
		t.Errorf("FrameIndex = %d after wrap, want 0", p.FrameIndex())
	}
}

func TestAnimationFinishedEvent(t *testing.T) {
	world := donburi.NewWorld()
	p := testSprite(t, 2, false)
	e := NewAnimation(world, p)

	var finished []donburi.Entity
	AnimationFinishedEvent.Subscribe(world, func(w donburi.World, ev AnimationFinished) {
		finished = append(finished, ev.Entity)
	})

	for i := 0; i < 4; i++ {
		AdvanceAnimations(world)
	}
	AnimationFinishedEvent.ProcessEvents(world)
	if len(finished) != 1 || finished[0] != e {
		t.Fatalf("finished = %v, want [%v]", finished, e)
	}
	if !Animation.Get(world.Entry(e)).Finished {
		t.Error("Finished flag should be set")
	}

	Restart(world, e)
	if p.FrameIndex() != 0 || Animation.Get(world.Entry(e)).Finished {
		t.Error("Restart should rewind and clear Finished")
	}
	AdvanceAnimations(world)
	if p.FrameIndex() != 1 {
		t.Errorf("FrameIndex = %d after restart, want 1", p.FrameIndex())
	}
}

func TestRemoveClosesProvider(t *testing.T) {
	world := donburi.NewWorld()
	cache := mapview.NewSharedCache()
	h, err := cache.Acquire(mapview.CacheSprites, "MSKEL", func() (any, error) {
		return &mapview.SpriteAtlas{
			Frames: []mapview.SpriteFrame{{Image: image.NewNRGBA(image.Rect(0, 0, 1, 1))}},
			Cycles: [][]int{{0}},
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	atlas, _ := mapview.HandlePayload[*mapview.SpriteAtlas](h)
	p, err := mapview.NewSpriteProvider(atlas, mapview.SpriteOptions{Handle: h})
	if err != nil {
		t.Fatal(err)
	}
	e := NewAnimation(world, p)

	Remove(world, e)
	if world.Valid(e) {
		t.Error("entity should be removed")
	}
	if cache.Contains(mapview.CacheSprites, "MSKEL") {
		t.Error("removing the entity should release the cached atlas")
	}
	Remove(world, e) // already gone
}

func TestAdvanceMaps(t *testing.T) {
	world := donburi.NewWorld()
	frame := image.NewNRGBA(image.Rect(0, 0, mapview.TileSize, mapview.TileSize))
	ts := &mapview.Tileset{
		Frames:  []*image.NRGBA{frame, frame},
		Tiles:   []mapview.Tile{{Frames: []int{0, 1}, Secondary: -1}},
		Columns: 1,
		Rows:    1,
	}
	c := mapview.NewCompositor(mapview.DefaultCompositorConfig())
	if err := c.Load(ts, nil, nil); err != nil {
		t.Fatal(err)
	}
	e := NewMap(world, c)

	if err := AdvanceMaps(world); err != nil {
		t.Fatal(err)
	}
	if st := c.Stats(); st.Redraws != 1 {
		t.Errorf("Redraws = %d, want 1", st.Redraws)
	}

	Remove(world, e)
	if c.State() != mapview.StateDisposed {
		t.Error("removing the map entity should dispose the compositor")
	}
}

func TestAdvanceMapsJoinsErrors(t *testing.T) {
	world := donburi.NewWorld()
	NewMap(world, mapview.NewCompositor(mapview.DefaultCompositorConfig()))
	if err := AdvanceMaps(world); err == nil {
		t.Error("unloaded compositor should report an error")
	}
}
