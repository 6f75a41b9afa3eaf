package mapview

import (
	"errors"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// TileSize is the edge length in pixels of every tileset frame.
const TileSize = 64

// MaxOverlays is the number of overlay tilesets a map can reference. Overlay
// bits 1..MaxOverlays of Tile.OverlayMask select them.
const MaxOverlays = 7

// MaxRasterPixels bounds the size of any raster the package allocates.
// Requests above it fail with ErrRasterTooLarge instead of allocating.
const MaxRasterPixels = 1 << 26

// Zoom limits accepted by Compositor.SetZoomFactor. Values outside are clamped.
const (
	MinZoom = 0.25
	MaxZoom = 4.0
)

var (
	// ErrRasterTooLarge is returned when a raster would exceed MaxRasterPixels.
	ErrRasterTooLarge = errors.New("raster too large")
	// ErrNotLoaded is returned by Compositor operations that need map data.
	ErrNotLoaded = errors.New("compositor not loaded")
	// ErrDisposed is returned once a compositor has been disposed.
	ErrDisposed = errors.New("compositor disposed")
	// ErrInvalidTileset reports tile tables that don't match their grid.
	ErrInvalidTileset = errors.New("invalid tileset")
)

// Engine identifies the game variant a map was authored for. The variant
// decides the overlay compositing mode and the door polarity.
type Engine uint8

const (
	EngineBG1  Engine = iota // original engine, masked overlays
	EngineBG2                // blended overlays
	EngineIWD                // masked overlays
	EngineIWD2               // masked overlays
	EnginePST                // masked overlays, inverted door polarity
	EngineEE                 // enhanced editions, blended overlays
)

// OverlayMode selects the per-pixel algorithm for tiles carrying an overlay.
type OverlayMode uint8

const (
	OverlayAuto    OverlayMode = iota // pick from the Engine
	OverlayMasked                     // primary wins where opaque, overlay elsewhere
	OverlayBlended                    // primary/secondary weighted against the overlay
)

var engineOverlayModes = map[Engine]OverlayMode{
	EngineBG1:  OverlayMasked,
	EngineBG2:  OverlayBlended,
	EngineIWD:  OverlayMasked,
	EngineIWD2: OverlayMasked,
	EnginePST:  OverlayMasked,
	EngineEE:   OverlayBlended,
}

// OverlayMode returns the compositing algorithm used by maps of this engine.
func (e Engine) OverlayMode() OverlayMode {
	if m, ok := engineOverlayModes[e]; ok {
		return m
	}
	return OverlayMasked
}

// PST stores door tiles with the open and closed tile indices swapped
// relative to every other engine.
var invertedDoorPolarity = map[Engine]bool{
	EnginePST: true,
}

// InvertsDoorPolarity reports whether the engine swaps the open/closed tile
// selection for door tiles.
func (e Engine) InvertsDoorPolarity() bool {
	return invertedDoorPolarity[e]
}

// Interpolation selects the scaler used when the zoom factor isn't 1.
type Interpolation uint8

const (
	InterpolationNearest  Interpolation = iota // blocky, exact pixels
	InterpolationBilinear                      // smoother, approximate bilinear
)

// AuxMapKind identifies an auxiliary raster that can be blended over the map.
type AuxMapKind uint8

const (
	AuxNone AuxMapKind = iota
	AuxSearch
	AuxHeight
	AuxLight
	numAuxKinds
)

var (
	debugMode atomic.Bool
	// warnLimiter keeps a burst of bad keys from flooding the log.
	warnLimiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 20)
)

// SetDebugMode enables warning output for recoverable problems such as
// placeholder substitution and unregistered cache keys.
func SetDebugMode(enabled bool) {
	debugMode.Store(enabled)
}

// debugf logs only when debug mode is on.
func debugf(format string, v ...any) {
	if debugMode.Load() {
		log.Printf("[mapview] "+format, v...)
	}
}

// warnf logs regardless of debug mode, subject to warnLimiter.
func warnf(format string, v ...any) {
	if !warnLimiter.Allow() {
		return
	}
	log.Printf("[mapview] warning: "+format, v...)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
