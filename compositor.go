package mapview

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hako/durafmt"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// CompositorState is the lifecycle stage of a Compositor.
type CompositorState uint8

const (
	StateUnloaded CompositorState = iota
	StateLoaded
	StateDisposed
)

// CompositorConfig holds the settings a Compositor starts with.
type CompositorConfig struct {
	// Engine selects the overlay mode and door polarity.
	Engine Engine
	// OverlayMode overrides the engine's overlay algorithm unless OverlayAuto.
	OverlayMode OverlayMode
	// BlendWeight is the overlay weight for blended mode: 0 keeps the tile
	// pixel, 255 shows only the overlay.
	BlendWeight uint8
	// AuxAlpha is the opacity of the auxiliary map blend.
	AuxAlpha uint8
	// Zoom is the initial zoom factor.
	Zoom float64
	// Workers bounds the goroutines used by a full repaint. Zero means
	// GOMAXPROCS.
	Workers int
	// GridColor is drawn along tile edges while the grid is enabled.
	GridColor color.NRGBA
}

// DefaultCompositorConfig returns the configuration used by NewCompositor
// when callers have no preferences.
func DefaultCompositorConfig() CompositorConfig {
	return CompositorConfig{
		Engine:      EngineBG2,
		OverlayMode: OverlayAuto,
		BlendWeight: 0x80,
		AuxAlpha:    0x80,
		Zoom:        1,
		GridColor:   color.NRGBA{R: 0x00, G: 0xff, B: 0x00, A: 0xa0},
	}
}

// RedrawStats describes the most recent successful Redraw.
type RedrawStats struct {
	Full     bool
	Tiles    int
	Duration time.Duration
	Redraws  uint64
}

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:y,wk:wk,d:d,h:h,m:m,s:s,ms:ms,us:us")

// String summarizes the stats on one line.
func (s RedrawStats) String() string {
	kind := "partial"
	if s.Full {
		kind = "full"
	}
	took := s.Duration.String()
	if s.Duration >= time.Microsecond {
		took = durafmt.Parse(s.Duration).LimitFirstN(2).Format(shortUnits)
	}
	return fmt.Sprintf("redraw #%d %s, %d tiles in %s", s.Redraws, kind, s.Tiles, took)
}

// mapData is everything Load ingests. It is built completely before being
// installed so that an aborted reload leaves the previous map untouched.
type mapData struct {
	primary  *Tileset
	overlays [MaxOverlays + 1]*Tileset
	doors    []DoorRecord
	doorOf   []int // tile index -> door index, -1 when not a door tile
}

// Compositor composes a map raster from tilesets, door state, overlays,
// lighting and an optional auxiliary map. Setters only raise dirty flags;
// Redraw does the work and publishes a finished raster that Image returns.
// All methods are safe for concurrent use.
type Compositor struct {
	mu    sync.Mutex
	cfg   CompositorConfig
	state CompositorState
	m     *mapData

	lighting   Lighting
	overlaysOn bool
	grid       bool
	interp     Interpolation
	auxMaps    [numAuxKinds]*image.NRGBA
	auxShown   AuxMapKind
	auxAlpha   uint8
	zoom       float64

	mapDirty        bool
	appearanceDirty bool
	overlaysDirty   bool
	doorStateDirty  bool
	dirtyDoors      map[int]struct{}

	stats RedrawStats
	front atomic.Pointer[image.NRGBA]
}

// NewCompositor creates an unloaded compositor.
func NewCompositor(cfg CompositorConfig) *Compositor {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Compositor{
		cfg:        cfg,
		overlaysOn: true,
		auxAlpha:   cfg.AuxAlpha,
		zoom:       clampZoom(cfg.Zoom),
		dirtyDoors: make(map[int]struct{}),
	}
}

// Load ingests a primary tileset, up to MaxOverlays overlay tilesets
// (overlays[i] serves overlay bit i+1, nil entries are allowed) and the door
// table. The compositor takes ownership of the tilesets. Loading again
// replaces the current map; on error the previous map stays in place.
func (c *Compositor) Load(primary *Tileset, overlays []*Tileset, doors []DoorRecord) error {
	if primary == nil {
		return fmt.Errorf("mapview: primary tileset missing: %w", ErrInvalidTileset)
	}
	if len(overlays) > MaxOverlays {
		return fmt.Errorf("mapview: %d overlays, at most %d: %w", len(overlays), MaxOverlays, ErrInvalidTileset)
	}
	if err := primary.validate("primary"); err != nil {
		return err
	}

	m := &mapData{primary: primary}
	for i, ov := range overlays {
		if ov == nil {
			continue
		}
		if err := ov.validate(fmt.Sprintf("overlay %d", i+1)); err != nil {
			return err
		}
		m.overlays[i+1] = ov
	}

	m.doors = append([]DoorRecord(nil), doors...)
	m.doorOf = make([]int, len(primary.Tiles))
	for i := range m.doorOf {
		m.doorOf[i] = -1
	}
	for di, d := range m.doors {
		for _, ti := range d.Tiles {
			if ti >= 0 && ti < len(m.doorOf) {
				m.doorOf[ti] = di
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisposed {
		return ErrDisposed
	}
	w, h := scaledSize(primary.Width(), primary.Height(), c.zoom)
	if err := checkRasterSize(w, h); err != nil {
		return err
	}

	// nothing below fails, so a rejected Load leaves the tilesets as given
	for _, ts := range m.overlays {
		if ts != nil {
			ts.normalize()
		}
	}
	primary.normalize()
	for i := range primary.Tiles {
		primary.Tiles[i].X = (i % primary.Columns) * TileSize
		primary.Tiles[i].Y = (i / primary.Columns) * TileSize
	}
	c.m = m
	c.state = StateLoaded
	c.mapDirty = true
	clear(c.dirtyDoors)
	return nil
}

// Dispose releases the map data. The compositor can't be reloaded afterwards.
func (c *Compositor) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateDisposed
	c.m = nil
	c.auxMaps = [numAuxKinds]*image.NRGBA{}
	c.front.Store(nil)
}

// State returns the lifecycle stage.
func (c *Compositor) State() CompositorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Image returns the most recently published raster. The raster is never
// modified after publication; callers may read it without locking.
func (c *Compositor) Image() *image.NRGBA {
	if img := c.front.Load(); img != nil {
		return img
	}
	return emptyRaster
}

// Dirty reports whether a Redraw would repaint anything.
func (c *Compositor) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mapDirty || c.appearanceDirty || c.overlaysDirty || c.doorStateDirty
}

// Stats returns the statistics of the last successful Redraw.
func (c *Compositor) Stats() RedrawStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// SetLighting selects the day/twilight/night transform. Out-of-range values
// are clamped.
func (c *Compositor) SetLighting(l Lighting) {
	l = ClampLighting(int(l))
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lighting != l {
		c.lighting = l
		c.appearanceDirty = true
	}
}

// Lighting returns the current lighting.
func (c *Compositor) Lighting() Lighting {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lighting
}

// SetOverlaysEnabled toggles overlay compositing for every tile.
func (c *Compositor) SetOverlaysEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.overlaysOn != enabled {
		c.overlaysOn = enabled
		c.appearanceDirty = true
	}
}

// SetGridEnabled toggles the tile grid.
func (c *Compositor) SetGridEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.grid != enabled {
		c.grid = enabled
		c.appearanceDirty = true
	}
}

// SetInterpolation selects the zoom scaler.
func (c *Compositor) SetInterpolation(i Interpolation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interp != i {
		c.interp = i
		c.appearanceDirty = true
	}
}

// SetAuxMap registers the raster for an auxiliary map kind. A nil raster
// unregisters it. The raster must not be modified while registered.
func (c *Compositor) SetAuxMap(kind AuxMapKind, img *image.NRGBA) {
	if kind == AuxNone || kind >= numAuxKinds {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auxMaps[kind] = img
	if c.auxShown == kind {
		c.appearanceDirty = true
	}
}

// ShowAuxMap blends the given auxiliary map over the composed tiles.
func (c *Compositor) ShowAuxMap(kind AuxMapKind) {
	if kind >= numAuxKinds {
		kind = AuxNone
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auxShown != kind {
		c.auxShown = kind
		c.appearanceDirty = true
	}
}

// HideAuxMap stops blending any auxiliary map.
func (c *Compositor) HideAuxMap() {
	c.ShowAuxMap(AuxNone)
}

// SetAuxAlpha sets the auxiliary map opacity.
func (c *Compositor) SetAuxAlpha(a uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auxAlpha != a {
		c.auxAlpha = a
		if c.auxShown != AuxNone {
			c.appearanceDirty = true
		}
	}
}

// SetZoomFactor changes the output scale. The factor is clamped to
// [MinZoom, MaxZoom]. If the resulting raster would be too large the
// previous zoom is kept and the error returned.
func (c *Compositor) SetZoomFactor(f float64) error {
	f = clampZoom(f)
	c.mu.Lock()
	defer c.mu.Unlock()
	if f == c.zoom {
		return nil
	}
	if c.m != nil {
		w, h := scaledSize(c.m.primary.Width(), c.m.primary.Height(), f)
		if err := checkRasterSize(w, h); err != nil {
			return err
		}
	}
	c.zoom = f
	c.mapDirty = true
	return nil
}

// ZoomFactor returns the current zoom factor.
func (c *Compositor) ZoomFactor() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

// SetDoorState opens or closes the named door (case-insensitive). It reports
// whether a door with that name exists.
func (c *Compositor) SetDoorState(name string, closed bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		return false
	}
	found := false
	for i := range c.m.doors {
		d := &c.m.doors[i]
		if !strings.EqualFold(d.Name, name) {
			continue
		}
		found = true
		if d.Closed != closed {
			d.Closed = closed
			c.dirtyDoors[i] = struct{}{}
			c.doorStateDirty = true
		}
	}
	return found
}

// SetAllDoorsClosed opens or closes every door.
func (c *Compositor) SetAllDoorsClosed(closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		return
	}
	for i := range c.m.doors {
		if c.m.doors[i].Closed != closed {
			c.m.doors[i].Closed = closed
			c.dirtyDoors[i] = struct{}{}
			c.doorStateDirty = true
		}
	}
}

// DoorClosed reports the state of the named door.
func (c *Compositor) DoorClosed(name string) (closed, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		return false, false
	}
	for _, d := range c.m.doors {
		if strings.EqualFold(d.Name, name) {
			return d.Closed, true
		}
	}
	return false, false
}

// AdvanceAnimationFrame moves every animated tile, in the primary and the
// overlay tilesets, to its next frame.
func (c *Compositor) AdvanceAnimationFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		return
	}
	for i := range c.m.primary.Tiles {
		c.m.primary.Tiles[i].advance()
	}
	for _, ov := range c.m.overlays {
		if ov == nil {
			continue
		}
		for i := range ov.Tiles {
			ov.Tiles[i].advance()
		}
	}
	c.overlaysDirty = true
}

// Redraw repaints what the dirty flags require and publishes the result.
// Map or appearance changes repaint every tile; overlay animation and door
// changes repaint only the affected tiles. When nothing is dirty Redraw
// returns immediately. On error the dirty flags are kept.
func (c *Compositor) Redraw() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateUnloaded:
		return ErrNotLoaded
	case StateDisposed:
		return ErrDisposed
	}

	start := time.Now()
	var (
		n    int
		err  error
		full bool
	)
	switch {
	case c.mapDirty || c.appearanceDirty:
		full = true
		n, err = c.repaintAll()
	case c.overlaysDirty || c.doorStateDirty:
		n, full, err = c.repaintTiles(c.partialTiles())
	default:
		return nil
	}
	if err != nil {
		return err
	}

	c.mapDirty = false
	c.appearanceDirty = false
	c.overlaysDirty = false
	c.doorStateDirty = false
	clear(c.dirtyDoors)

	c.stats.Full = full
	c.stats.Tiles = n
	c.stats.Duration = time.Since(start)
	c.stats.Redraws++
	debugf("%v", c.stats)
	return nil
}

// repaintAll composes every tile into a new raster, one worker per tile row.
func (c *Compositor) repaintAll() (int, error) {
	ts := c.m.primary
	w, h := scaledSize(ts.Width(), ts.Height(), c.zoom)
	out, err := NewRaster(w, h)
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for row := 0; row < ts.Rows; row++ {
		g.Go(func() error {
			p := newTilePainter()
			for col := 0; col < ts.Columns; col++ {
				c.paintTile(p, row*ts.Columns+col, out)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	c.front.Store(out)
	return len(ts.Tiles), nil
}

// repaintTiles repaints the listed tiles on a copy of the published raster.
// It falls back to a full repaint when there is nothing to copy from.
func (c *Compositor) repaintTiles(tiles []int) (n int, full bool, err error) {
	prev := c.front.Load()
	w, h := scaledSize(c.m.primary.Width(), c.m.primary.Height(), c.zoom)
	if prev == nil || prev.Rect.Dx() != w || prev.Rect.Dy() != h {
		n, err = c.repaintAll()
		return n, true, err
	}
	out := cloneRaster(prev)
	p := newTilePainter()
	for _, idx := range tiles {
		c.paintTile(p, idx, out)
	}
	c.front.Store(out)
	return len(tiles), false, nil
}

// partialTiles lists the tiles affected by pending overlay and door changes.
func (c *Compositor) partialTiles() []int {
	tiles := c.m.primary.Tiles
	marked := make([]bool, len(tiles))
	if c.overlaysDirty {
		for i := range tiles {
			t := &tiles[i]
			if t.Animated() || (c.overlaysOn && t.OverlayIndex() > 0) {
				marked[i] = true
			}
		}
	}
	if c.doorStateDirty {
		for di := range c.dirtyDoors {
			for _, ti := range c.m.doors[di].Tiles {
				if ti >= 0 && ti < len(marked) {
					marked[ti] = true
				}
			}
		}
	}
	var out []int
	for i, ok := range marked {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// tilePainter holds the per-goroutine scratch raster of a repaint.
type tilePainter struct {
	tile *image.NRGBA
}

func newTilePainter() *tilePainter {
	return &tilePainter{
		tile: image.NewNRGBA(image.Rect(0, 0, TileSize, TileSize)),
	}
}

// paintTile composes tile idx and scales it into its rectangle of out.
// It reads compositor state without locking; callers hold c.mu.
func (c *Compositor) paintTile(p *tilePainter, idx int, out *image.NRGBA) {
	c.composeTile(p, idx)

	t := &c.m.primary.Tiles[idx]
	dr := c.scaledTileRect(t.X, t.Y)
	if dr.Empty() {
		return
	}
	if c.zoom == 1 {
		for y := 0; y < TileSize; y++ {
			o := out.PixOffset(dr.Min.X, dr.Min.Y+y)
			copy(out.Pix[o:o+TileSize*4], p.tile.Pix[y*p.tile.Stride:])
		}
	} else {
		c.scaler().Scale(out, dr, p.tile, p.tile.Bounds(), draw.Src, nil)
	}
	if c.grid {
		gc := image.NewUniform(c.cfg.GridColor)
		draw.Draw(out, image.Rect(dr.Min.X, dr.Min.Y, dr.Max.X, dr.Min.Y+1), gc, image.Point{}, draw.Over)
		draw.Draw(out, image.Rect(dr.Min.X, dr.Min.Y+1, dr.Min.X+1, dr.Max.Y), gc, image.Point{}, draw.Over)
	}
}

// composeTile writes the unscaled composite of tile idx into p.tile.
func (c *Compositor) composeTile(p *tilePainter, idx int) {
	ts := c.m.primary
	t := &ts.Tiles[idx]

	var src tileSources
	src.palette = t.Palette
	if c.tileClosed(idx) && t.Secondary >= 0 {
		src.primary = ts.frame(t.Secondary)
	} else {
		src.primary = ts.frame(t.Frame())
		if t.Secondary >= 0 {
			src.secondary = ts.frame(t.Secondary)
		}
	}
	if ov := c.overlayFor(t); ov != nil {
		ot := ov.tileAt(idx%ts.Columns, idx/ts.Columns)
		src.overlay = ov.frame(ot.Frame())
	}

	switch {
	case src.overlay == nil:
		copy(p.tile.Pix, src.primary.Pix)
	case c.overlayMode() == OverlayBlended:
		composeBlended(p.tile.Pix, src, c.cfg.BlendWeight)
	default:
		composeMasked(p.tile.Pix, src)
	}
	applyLighting(p.tile.Pix, c.lighting)

	if c.auxShown != AuxNone {
		if aux := c.auxMaps[c.auxShown]; aux != nil {
			blendAux(p.tile, aux, t.X, t.Y, ts.Width(), ts.Height(), c.auxAlpha)
		}
	}
}

// tileClosed reports whether tile idx should show its door-closed frame.
func (c *Compositor) tileClosed(idx int) bool {
	di := c.m.doorOf[idx]
	if di < 0 {
		return false
	}
	closed := c.m.doors[di].Closed
	if c.cfg.Engine.InvertsDoorPolarity() {
		closed = !closed
	}
	return closed
}

// overlayFor returns the overlay tileset shown on t, or nil. A bit naming an
// overlay that was never loaded counts as no overlay.
func (c *Compositor) overlayFor(t *Tile) *Tileset {
	if !c.overlaysOn {
		return nil
	}
	n := t.OverlayIndex()
	if n == 0 {
		return nil
	}
	return c.m.overlays[n]
}

func (c *Compositor) overlayMode() OverlayMode {
	if c.cfg.OverlayMode != OverlayAuto {
		return c.cfg.OverlayMode
	}
	return c.cfg.Engine.OverlayMode()
}

func (c *Compositor) scaler() draw.Scaler {
	if c.interp == InterpolationBilinear {
		return draw.ApproxBiLinear
	}
	return draw.NearestNeighbor
}

// scaledTileRect maps a tile's pixel position into output coordinates.
func (c *Compositor) scaledTileRect(x, y int) image.Rectangle {
	z := c.zoom
	return image.Rect(
		int(math.Floor(float64(x)*z)),
		int(math.Floor(float64(y)*z)),
		int(math.Floor(float64(x+TileSize)*z)),
		int(math.Floor(float64(y+TileSize)*z)),
	)
}

func scaledSize(w, h int, zoom float64) (int, int) {
	return max(1, int(math.Floor(float64(w)*zoom))), max(1, int(math.Floor(float64(h)*zoom)))
}

func clampZoom(f float64) float64 {
	if math.IsNaN(f) || f == 0 {
		return 1
	}
	return math.Min(math.Max(f, MinZoom), MaxZoom)
}
