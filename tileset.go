package mapview

import (
	"fmt"
	"image"
	"math/bits"
)

// Tile is one 64x64 cell of a map.
type Tile struct {
	// X and Y are the pixel position of the tile's top-left corner.
	X, Y int
	// Frames lists the primary frame indices. Tiles with more than one entry
	// are animated and cycle through them on each animation step.
	Frames []int
	// Secondary is the frame shown while the tile's door is closed, or -1.
	Secondary int
	// OverlayMask has bit n set (1..MaxOverlays) when overlay n shows through
	// transparent pixels of this tile. Bit 0 is unused.
	OverlayMask uint8
	// Palette is true for palette-indexed source data, false for
	// true-colour data.
	Palette bool

	cursor int
}

// Frame returns the current primary frame index, or -1 if the tile has none.
func (t *Tile) Frame() int {
	if len(t.Frames) == 0 {
		return -1
	}
	return t.Frames[t.cursor%len(t.Frames)]
}

// Animated reports whether the tile cycles between several frames.
func (t *Tile) Animated() bool {
	return len(t.Frames) > 1
}

// OverlayIndex returns the lowest overlay number (1..MaxOverlays) set in the
// mask, or 0 when the tile has no overlay.
func (t *Tile) OverlayIndex() int {
	m := t.OverlayMask &^ 1
	if m == 0 {
		return 0
	}
	return bits.TrailingZeros8(m)
}

func (t *Tile) advance() {
	if len(t.Frames) > 1 {
		t.cursor = (t.cursor + 1) % len(t.Frames)
	}
}

// Tileset is a decoded tile atlas and the tile table indexing it. A map's
// primary tileset has Columns*Rows tiles in row-major order.
type Tileset struct {
	Frames  []*image.NRGBA
	Tiles   []Tile
	Columns int
	Rows    int
}

// validate checks the tile table against the grid.
func (ts *Tileset) validate(name string) error {
	if ts.Columns <= 0 || ts.Rows <= 0 {
		return fmt.Errorf("mapview: %s: empty grid %dx%d: %w", name, ts.Columns, ts.Rows, ErrInvalidTileset)
	}
	if len(ts.Tiles) != ts.Columns*ts.Rows {
		return fmt.Errorf("mapview: %s: %d tiles for %dx%d grid: %w", name, len(ts.Tiles), ts.Columns, ts.Rows, ErrInvalidTileset)
	}
	return nil
}

// normalize converts every frame to a TileSize square at the origin.
func (ts *Tileset) normalize() {
	for i, f := range ts.Frames {
		if f != nil {
			ts.Frames[i] = normalizeTile(f)
		}
	}
}

// frame resolves a frame index, substituting the placeholder tile when the
// index is out of range or the frame was never decoded.
func (ts *Tileset) frame(i int) *image.NRGBA {
	if i >= 0 && i < len(ts.Frames) && ts.Frames[i] != nil {
		return ts.Frames[i]
	}
	debugf("tileset frame %d unresolved, using placeholder", i)
	return placeholderTile()
}

// tileAt returns the tile covering grid cell (col, row), wrapping around the
// tileset's own grid. Overlay tilesets are usually a single repeated tile.
func (ts *Tileset) tileAt(col, row int) *Tile {
	c := col % ts.Columns
	r := row % ts.Rows
	return &ts.Tiles[r*ts.Columns+c]
}

// Width returns the map width in pixels.
func (ts *Tileset) Width() int { return ts.Columns * TileSize }

// Height returns the map height in pixels.
func (ts *Tileset) Height() int { return ts.Rows * TileSize }

// DoorRecord lists the tiles whose appearance follows a door's state.
type DoorRecord struct {
	Name   string
	Closed bool
	Tiles  []int
}
