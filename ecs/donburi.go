package ecs

import (
	"errors"

	"github.com/phanxgames/mapview"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"
)

// AnimationData attaches a frame provider to an entity.
type AnimationData struct {
	Provider mapview.FrameProvider
	// Finished is set once a non-looping provider stops advancing. It is
	// cleared again by Restart.
	Finished bool
}

// Animation is the component holding an entity's frame provider.
var Animation = donburi.NewComponentType[AnimationData]()

// MapData attaches a compositor to an entity.
type MapData struct {
	Compositor *mapview.Compositor
}

// Map is the component holding an area's compositor.
var Map = donburi.NewComponentType[MapData]()

// AnimationFinished is published once when an entity's provider reaches the
// end of a non-looping sequence.
type AnimationFinished struct {
	Entity donburi.Entity
}

// AnimationFinishedEvent carries AnimationFinished events. Subscribe to it and
// call ProcessEvents once per tick.
var AnimationFinishedEvent = events.NewEventType[AnimationFinished]()

var (
	animations = donburi.NewQuery(filter.Contains(Animation))
	maps       = donburi.NewQuery(filter.Contains(Map))
)

// NewAnimation creates an entity owning p.
func NewAnimation(w donburi.World, p mapview.FrameProvider) donburi.Entity {
	e := w.Create(Animation)
	Animation.SetValue(w.Entry(e), AnimationData{Provider: p})
	return e
}

// NewMap creates an entity owning c.
func NewMap(w donburi.World, c *mapview.Compositor) donburi.Entity {
	e := w.Create(Map)
	Map.SetValue(w.Entry(e), MapData{Compositor: c})
	return e
}

// AdvanceAnimations steps every animation entity by one frame.
func AdvanceAnimations(w donburi.World) {
	animations.Each(w, func(entry *donburi.Entry) {
		a := Animation.Get(entry)
		if a.Provider == nil || a.Finished {
			return
		}
		if !a.Provider.AdvanceFrame() && !a.Provider.IsLooping() {
			a.Finished = true
			AnimationFinishedEvent.Publish(w, AnimationFinished{Entity: entry.Entity()})
		}
	})
}

// Restart rewinds an entity's provider and clears its finished flag.
func Restart(w donburi.World, e donburi.Entity) {
	entry := w.Entry(e)
	if !entry.HasComponent(Animation) {
		return
	}
	a := Animation.Get(entry)
	a.Finished = false
	if a.Provider != nil {
		a.Provider.ResetFrame()
	}
}

// AdvanceMaps steps the tile animation of every map entity and redraws it.
// Errors of individual maps are joined.
func AdvanceMaps(w donburi.World) error {
	var errs []error
	maps.Each(w, func(entry *donburi.Entry) {
		c := Map.Get(entry).Compositor
		if c == nil {
			return
		}
		c.AdvanceAnimationFrame()
		if err := c.Redraw(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// Remove closes the entity's provider or disposes its compositor, then
// removes the entity.
func Remove(w donburi.World, e donburi.Entity) {
	if !w.Valid(e) {
		return
	}
	entry := w.Entry(e)
	if entry.HasComponent(Animation) {
		if p := Animation.Get(entry).Provider; p != nil {
			p.Close()
		}
	}
	if entry.HasComponent(Map) {
		if c := Map.Get(entry).Compositor; c != nil {
			c.Dispose()
		}
	}
	w.Remove(e)
}
