// Package ecs drives mapview animations from a [Donburi] world.
//
// Attach a frame provider with [NewAnimation] or a compositor with [NewMap],
// then call [AdvanceAnimations] and [AdvanceMaps] once per tick. Non-looping
// providers publish an [AnimationFinished] event when they stop:
//
//	ecs.AnimationFinishedEvent.Subscribe(world, func(w donburi.World, e ecs.AnimationFinished) {
//		ecs.Remove(w, e.Entity)
//	})
//	ecs.AdvanceAnimations(world)
//	ecs.AnimationFinishedEvent.ProcessEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
