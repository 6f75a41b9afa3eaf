package mapview

import (
	"fmt"
	"image"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// EffectOptions configures an EffectProvider.
type EffectOptions struct {
	// Cycles lists the cycles to play. Only the first is used unless
	// MultiPart is set, in which case every cycle contributes one frame to
	// the same composite.
	Cycles    []int
	MultiPart bool
	Looping   bool
	// FrameCap is the last frame index. Zero means the last frame of the
	// longest cycle.
	FrameCap int
	Post     PostChain
	// Handle, if set, is released when the provider is closed.
	Handle *CacheHandle
}

// EffectProvider plays background effects: a single cycle, or several cycles
// stacked into one composite in multi-part mode, optionally mirrored,
// faded or brightness-translucent.
type EffectProvider struct {
	providerBase
	atlas     *SpriteAtlas
	cycles    []int
	multiPart bool
	frameCap  int
	index     int
	bounds    image.Rectangle
	fade      *gween.Tween
	fadeTo    uint8
}

// NewEffectProvider creates an inactive effect provider over atlas.
func NewEffectProvider(atlas *SpriteAtlas, opts EffectOptions) (*EffectProvider, error) {
	if atlas == nil || atlas.NumCycles() == 0 {
		if opts.Handle != nil {
			opts.Handle.Release()
		}
		return nil, fmt.Errorf("mapview: effect atlas has no cycles")
	}
	p := &EffectProvider{
		atlas:     atlas,
		multiPart: opts.MultiPart,
		frameCap:  max(opts.FrameCap, 0),
	}
	p.looping = opts.Looping
	p.post = opts.Post
	p.handle = opts.Handle
	p.setCycles(opts.Cycles)
	p.redraw()
	return p, nil
}

func (p *EffectProvider) setCycles(cycles []int) {
	p.cycles = p.cycles[:0]
	for _, c := range cycles {
		p.cycles = append(p.cycles, clampInt(c, 0, p.atlas.NumCycles()-1))
	}
	if len(p.cycles) == 0 {
		p.cycles = append(p.cycles, 0)
	}
	p.updateBounds()
	p.index = min(p.index, p.lastFrame())
}

// parts returns the cycles currently contributing to the composite.
func (p *EffectProvider) parts() []int {
	if p.multiPart {
		return p.cycles
	}
	return p.cycles[:1]
}

func (p *EffectProvider) updateBounds() {
	var r image.Rectangle
	for _, c := range p.parts() {
		r = r.Union(p.atlas.cycleBounds(c, p.post.Mirror))
	}
	p.bounds = r
}

func (p *EffectProvider) lastFrame() int {
	if p.frameCap > 0 {
		return p.frameCap
	}
	n := 0
	for _, c := range p.parts() {
		n = max(n, p.atlas.CycleLen(c))
	}
	return max(n-1, 0)
}

// SetCycles replaces the played cycles.
func (p *EffectProvider) SetCycles(cycles ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setCycles(cycles)
	p.redraw()
}

// SetMultiPart switches between single-cycle and multi-part playback.
func (p *EffectProvider) SetMultiPart(multi bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.multiPart != multi {
		p.multiPart = multi
		p.updateBounds()
		p.index = min(p.index, p.lastFrame())
		p.redraw()
	}
}

// MultiPart reports whether all cycles are composited together.
func (p *EffectProvider) MultiPart() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.multiPart
}

// SetFrameCap sets the last frame index; zero restores the default.
func (p *EffectProvider) SetFrameCap(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frameCap = max(n, 0)
	if p.index > p.lastFrame() {
		p.index = p.lastFrame()
		p.redraw()
	}
}

// FrameCap returns the effective last frame index.
func (p *EffectProvider) FrameCap() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFrame()
}

// SetMirror flips the effect horizontally.
func (p *EffectProvider) SetMirror(mirror bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.post.Mirror != mirror {
		p.post.Mirror = mirror
		p.updateBounds()
		p.redraw()
	}
}

// SetAlpha sets the global opacity and cancels a running fade.
func (p *EffectProvider) SetAlpha(a uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fade = nil
	p.post.Transparency = 0xff - a
	p.redraw()
}

// Alpha returns the current global opacity.
func (p *EffectProvider) Alpha() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return 0xff - p.post.Transparency
}

// SetTranslucent enables brightness-derived translucency.
func (p *EffectProvider) SetTranslucent(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.post.Translucent = on
	p.redraw()
}

// SetLighting applies a lighting transform to the effect. lit=false renders
// the effect at full brightness.
func (p *EffectProvider) SetLighting(l Lighting, lit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.post.Lighting = ClampLighting(int(l))
	p.post.Lit = lit
	p.redraw()
}

// FadeTo animates the global opacity to alpha over the next frames calls to
// AdvanceFrame. frames <= 0 sets the alpha immediately.
func (p *EffectProvider) FadeTo(alpha uint8, frames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if frames <= 0 {
		p.fade = nil
		p.post.Transparency = 0xff - alpha
		p.redraw()
		return
	}
	from := float32(0xff - p.post.Transparency)
	p.fade = gween.New(from, float32(alpha), float32(frames), ease.Linear)
	p.fadeTo = alpha
}

// Fading reports whether a FadeTo is still running.
func (p *EffectProvider) Fading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fade != nil
}

// Activate starts rendering.
func (p *EffectProvider) Activate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	p.redraw()
}

// Deactivate clears the output.
func (p *EffectProvider) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	p.redraw()
}

// SetActiveIgnored renders frames even while inactive.
func (p *EffectProvider) SetActiveIgnored(ignored bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeIgnored = ignored
	p.redraw()
}

// AdvanceFrame moves to the next frame. At the frame cap it wraps to 0 when
// looping and otherwise returns false. A running fade steps with each frame
// and jumps to its target once a non-looping effect has stopped.
func (p *EffectProvider) AdvanceFrame() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if p.index >= p.lastFrame() {
		if !p.looping {
			if p.fade != nil {
				p.fade = nil
				p.post.Transparency = 0xff - p.fadeTo
				p.redraw()
			}
			return false
		}
		p.index = 0
	} else {
		p.index++
	}
	p.stepFade()
	p.redraw()
	return true
}

func (p *EffectProvider) stepFade() {
	if p.fade == nil {
		return
	}
	v, done := p.fade.Update(1)
	p.post.Transparency = 0xff - uint8(clampInt(int(v+0.5), 0, 0xff))
	if done {
		p.fade = nil
	}
}

// ResetFrame returns to frame 0.
func (p *EffectProvider) ResetFrame() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = 0
	p.redraw()
}

// FrameIndex returns the current frame index.
func (p *EffectProvider) FrameIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// Close releases the atlas handle and clears the output.
func (p *EffectProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.fade = nil
		p.release()
	}
}

func (p *EffectProvider) redraw() {
	if p.closed {
		return
	}
	parts := p.parts()
	frames := make([]SpriteFrame, 0, len(parts))
	for _, c := range parts {
		if n := p.atlas.CycleLen(c); n > 0 {
			frames = append(frames, p.atlas.frame(c, p.index%n))
		}
	}
	p.render(p.bounds, frames)
}
