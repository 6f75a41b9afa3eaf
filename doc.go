// Package mapview renders tile-based area maps and the animations drawn on
// top of them into CPU rasters ready for display with [Ebitengine].
//
// Callers hand in decoded tile atlases, door tables and sprite frames; the
// package hands back [*image.NRGBA] rasters that can be read from any
// goroutine. File formats, UI and input stay with the caller.
//
// # Quick start
//
//	c := mapview.NewCompositor(mapview.DefaultCompositorConfig())
//	if err := c.Load(primary, overlays, doors); err != nil {
//		log.Fatal(err)
//	}
//	c.SetLighting(mapview.LightingNight)
//	if err := c.Redraw(); err != nil {
//		log.Fatal(err)
//	}
//	img := c.Image()
//
// # Compositor
//
// [Compositor] combines a primary [Tileset] with up to [MaxOverlays] overlay
// tilesets (water, lava), door state, a day/twilight/night [Lighting]
// transform, an optional tile grid, zoom and an auxiliary map blend. Setters
// only mark parts of the map dirty; [Compositor.Redraw] repaints what is
// needed and publishes a finished raster. Whether overlays are masked or
// blended, and which door frame counts as closed, follows the map's [Engine].
//
// # Frame providers
//
// A [FrameProvider] turns a [SpriteAtlas] into one raster per animation step.
// [SpriteProvider] plays directional creature animations, [EffectProvider]
// plays background effects, optionally several cycles at once, and fades
// them with [EffectProvider.FadeTo] (via [gween]). [LazyProvider] defers
// decoding until an animation is first shown.
//
// Every provider runs its frames through a [PostChain]: mirror, global
// alpha, brightness translucency and lighting, in that order.
//
// # Shared cache
//
// [SharedCache] reference-counts decoded atlases and icons so that the
// objects of one map share them. [SharedCache.Acquire] loads a missing key
// once even under concurrent requests and returns a [CacheHandle] that a
// provider releases when it is closed.
//
// # Display
//
// [Texture] uploads a published raster to an [ebiten.Image] only when it
// changed. The ecs subpackage drives providers and compositors from a
// [Donburi] world.
//
// # Debug mode
//
// [SetDebugMode] logs recoverable problems, such as unresolved frame indices
// replaced by the placeholder tile, through the standard log package.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
// [Donburi]: https://github.com/yohamta/donburi
package mapview
