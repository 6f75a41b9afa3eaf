package mapview

import (
	"fmt"
	"image"
)

// Direction is a creature orientation in 22.5° steps, clockwise from south.
type Direction uint8

// NumDirections is the number of distinct orientations.
const NumDirections = 16

const (
	DirS   Direction = 0
	DirSSW Direction = 1
	DirSW  Direction = 2
	DirWSW Direction = 3
	DirW   Direction = 4
	DirWNW Direction = 5
	DirNW  Direction = 6
	DirNNW Direction = 7
	DirN   Direction = 8
	DirNNE Direction = 9
	DirNE  Direction = 10
	DirENE Direction = 11
	DirE   Direction = 12
	DirESE Direction = 13
	DirSE  Direction = 14
	DirSSE Direction = 15
)

// SpriteOptions configures a SpriteProvider.
type SpriteOptions struct {
	// Orientations maps each orientation present in the source to its cycle.
	// When empty, orientation d uses cycle d for every cycle that exists.
	Orientations map[Direction]int
	// Direction is the initial orientation request.
	Direction Direction
	Looping   bool
	Post      PostChain
	// Handle, if set, is released when the provider is closed.
	Handle *CacheHandle
}

// SpriteProvider plays the directional animation of a creature. Requested
// orientations resolve to the nearest orientation present in the source,
// and an optional start/end frame range trims a cycle.
type SpriteProvider struct {
	providerBase
	atlas  *SpriteAtlas
	orient map[Direction]int
	dir    Direction
	cycle  int
	index  int
	start  int // effective range, clamped to the current cycle
	end    int // -1 means the last frame of the cycle

	// requested range, kept across cycle changes
	reqStart int
	reqEnd   int

	bounds image.Rectangle
}

// NewSpriteProvider creates an inactive provider over atlas.
func NewSpriteProvider(atlas *SpriteAtlas, opts SpriteOptions) (*SpriteProvider, error) {
	if atlas == nil || atlas.NumCycles() == 0 {
		if opts.Handle != nil {
			opts.Handle.Release()
		}
		return nil, fmt.Errorf("mapview: sprite atlas has no cycles")
	}
	orient := make(map[Direction]int, NumDirections)
	for d, c := range opts.Orientations {
		if d < NumDirections && c >= 0 && c < atlas.NumCycles() {
			orient[d] = c
		}
	}
	if len(orient) == 0 {
		for d := 0; d < NumDirections && d < atlas.NumCycles(); d++ {
			orient[Direction(d)] = d
		}
	}
	p := &SpriteProvider{
		atlas:  atlas,
		orient: orient,
		end:    -1,
		reqEnd: -1,
	}
	p.looping = opts.Looping
	p.post = opts.Post
	p.handle = opts.Handle
	p.dir = p.resolve(opts.Direction)
	p.cycle = p.orient[p.dir]
	p.updateBounds()
	p.redraw()
	return p, nil
}

// resolve returns d if present, otherwise the nearest present orientation,
// preferring the clockwise neighbour on ties.
func (p *SpriteProvider) resolve(d Direction) Direction {
	d %= NumDirections
	if _, ok := p.orient[d]; ok {
		return d
	}
	for k := 1; k <= NumDirections/2; k++ {
		cw := Direction((int(d) + k) % NumDirections)
		if _, ok := p.orient[cw]; ok {
			return cw
		}
		ccw := Direction((int(d) - k + NumDirections) % NumDirections)
		if _, ok := p.orient[ccw]; ok {
			return ccw
		}
	}
	return d
}

// ResolveDirection returns the orientation that would be shown for d.
func (p *SpriteProvider) ResolveDirection(d Direction) Direction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolve(d)
}

// SetDirection switches to the cycle of the orientation nearest to d and
// restarts it. It returns the resolved orientation.
func (p *SpriteProvider) SetDirection(d Direction) Direction {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dir = p.resolve(d)
	p.setCycle(p.orient[p.dir])
	return p.dir
}

// Direction returns the resolved orientation.
func (p *SpriteProvider) Direction() Direction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dir
}

// SetCycle selects a cycle directly. The index is clamped.
func (p *SpriteProvider) SetCycle(c int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setCycle(clampInt(c, 0, p.atlas.NumCycles()-1))
}

// Cycle returns the current cycle.
func (p *SpriteProvider) Cycle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cycle
}

func (p *SpriteProvider) setCycle(c int) {
	if c != p.cycle {
		p.cycle = c
		p.updateBounds()
	}
	p.clampRange()
	p.index = p.start
	p.redraw()
}

// SetFrameRange trims the cycle to frames start..end. An end before start
// is raised to start; a negative end means the last frame.
func (p *SpriteProvider) SetFrameRange(start, end int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqStart = start
	p.reqEnd = end
	p.clampRange()
	p.clampIndex()
}

// SetStartFrame sets the first frame, pushing the end frame along if needed.
func (p *SpriteProvider) SetStartFrame(start int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqStart = start
	p.clampRange()
	p.clampIndex()
}

// SetEndFrame sets the last frame; it can't precede the start frame.
func (p *SpriteProvider) SetEndFrame(end int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqEnd = end
	p.clampRange()
	p.clampIndex()
}

// FrameRange returns the effective start and end frames.
func (p *SpriteProvider) FrameRange() (start, end int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.start, p.lastFrame()
}

// clampRange derives the effective range from the requested one.
func (p *SpriteProvider) clampRange() {
	n := p.atlas.CycleLen(p.cycle)
	p.start = clampInt(p.reqStart, 0, max(n-1, 0))
	p.end = p.reqEnd
	if p.end >= 0 {
		p.end = clampInt(p.end, p.start, max(n-1, p.start))
	}
}

func (p *SpriteProvider) clampIndex() {
	idx := clampInt(p.index, p.start, p.lastFrame())
	if idx != p.index {
		p.index = idx
		p.redraw()
	}
}

func (p *SpriteProvider) lastFrame() int {
	if p.end >= 0 {
		return p.end
	}
	return max(p.atlas.CycleLen(p.cycle)-1, p.start)
}

// SetMirror flips the sprite horizontally around its anchor.
func (p *SpriteProvider) SetMirror(mirror bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.post.Mirror != mirror {
		p.post.Mirror = mirror
		p.updateBounds()
		p.redraw()
	}
}

// SetPostChain replaces the post-processing settings.
func (p *SpriteProvider) SetPostChain(pc PostChain) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mirrorChanged := pc.Mirror != p.post.Mirror
	p.post = pc
	if mirrorChanged {
		p.updateBounds()
	}
	p.redraw()
}

// Activate starts rendering.
func (p *SpriteProvider) Activate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	p.redraw()
}

// Deactivate clears the output.
func (p *SpriteProvider) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	p.redraw()
}

// SetActiveIgnored renders frames even while inactive.
func (p *SpriteProvider) SetActiveIgnored(ignored bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeIgnored = ignored
	p.redraw()
}

// AdvanceFrame moves to the next frame of the range. At the end frame it
// wraps to the start frame when looping and otherwise returns false.
func (p *SpriteProvider) AdvanceFrame() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.atlas.CycleLen(p.cycle) == 0 {
		return false
	}
	if p.index >= p.lastFrame() {
		if !p.looping {
			return false
		}
		p.index = p.start
	} else {
		p.index++
	}
	p.redraw()
	return true
}

// ResetFrame returns to the start frame.
func (p *SpriteProvider) ResetFrame() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = p.start
	p.redraw()
}

// FrameIndex returns the current frame index within the cycle.
func (p *SpriteProvider) FrameIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// Close releases the atlas handle and clears the output.
func (p *SpriteProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.release()
	}
}

func (p *SpriteProvider) updateBounds() {
	p.bounds = p.atlas.cycleBounds(p.cycle, p.post.Mirror)
}

func (p *SpriteProvider) redraw() {
	if p.closed {
		return
	}
	p.render(p.bounds, []SpriteFrame{p.atlas.frame(p.cycle, p.index)})
}
