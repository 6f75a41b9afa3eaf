package mapview

import (
	"image"
	"sync"
	"sync/atomic"
)

// SpriteFrame is one decoded animation frame. CenterX and CenterY locate the
// anchor point inside Image.
type SpriteFrame struct {
	Image            *image.NRGBA
	CenterX, CenterY int
}

// bounds returns the frame rectangle relative to its anchor. A mirrored frame
// is reflected around the anchor's vertical axis.
func (f SpriteFrame) bounds(mirror bool) image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	w, h := f.Image.Rect.Dx(), f.Image.Rect.Dy()
	r := image.Rect(-f.CenterX, -f.CenterY, w-f.CenterX, h-f.CenterY)
	if mirror {
		r.Min.X, r.Max.X = -r.Max.X, -r.Min.X
	}
	return r
}

// SpriteAtlas is a decoded animation: a frame list and the cycles (frame
// index sequences) that play it.
type SpriteAtlas struct {
	Frames []SpriteFrame
	Cycles [][]int
}

// NumCycles returns the number of cycles.
func (a *SpriteAtlas) NumCycles() int {
	if a == nil {
		return 0
	}
	return len(a.Cycles)
}

// CycleLen returns the number of frames in cycle c, 0 if c doesn't exist.
func (a *SpriteAtlas) CycleLen(c int) int {
	if a == nil || c < 0 || c >= len(a.Cycles) {
		return 0
	}
	return len(a.Cycles[c])
}

// frame resolves frame i of cycle c. Unresolvable indices yield a zero
// SpriteFrame, which renders as nothing.
func (a *SpriteAtlas) frame(c, i int) SpriteFrame {
	if i < 0 || i >= a.CycleLen(c) {
		return SpriteFrame{}
	}
	fi := a.Cycles[c][i]
	if fi < 0 || fi >= len(a.Frames) {
		debugf("sprite frame %d of cycle %d unresolved", fi, c)
		return SpriteFrame{}
	}
	return a.Frames[fi]
}

// cycleBounds is the union of all frame rectangles of cycle c.
func (a *SpriteAtlas) cycleBounds(c int, mirror bool) image.Rectangle {
	var r image.Rectangle
	for i := 0; i < a.CycleLen(c); i++ {
		r = r.Union(a.frame(c, i).bounds(mirror))
	}
	return r
}

// Bytes returns the approximate memory held by the decoded frames.
func (a *SpriteAtlas) Bytes() int {
	if a == nil {
		return 0
	}
	n := 0
	for _, f := range a.Frames {
		if f.Image != nil {
			n += len(f.Image.Pix)
		}
	}
	return n
}

// FrameProvider produces one raster per animation step. Image and Anchor may
// be called from any goroutine while another advances the provider.
type FrameProvider interface {
	// Activate makes the provider render its frames.
	Activate()
	// Deactivate clears the output; frames keep advancing.
	Deactivate()
	// IsActive reports the activation state.
	IsActive() bool
	// SetActiveIgnored renders frames regardless of the activation state.
	SetActiveIgnored(ignored bool)
	// AdvanceFrame moves to the next frame. It returns false when the
	// sequence can't advance, e.g. at the frame cap with looping off.
	AdvanceFrame() bool
	// ResetFrame returns to the first frame.
	ResetFrame()
	// IsLooping reports whether the sequence wraps at its end.
	IsLooping() bool
	// SetLooping enables or disables wrapping.
	SetLooping(looping bool)
	// FrameIndex returns the current frame index.
	FrameIndex() int
	// Image returns the current output raster.
	Image() *image.NRGBA
	// Anchor returns the position of the raster's top-left corner relative
	// to the logical anchor point; draw the raster at anchor + Anchor().
	Anchor() image.Point
	// Close releases the provider's resources. Closing twice is a no-op.
	Close()
}

// frameOutput is a published raster with its anchor offset.
type frameOutput struct {
	img    *image.NRGBA
	anchor image.Point
}

// providerBase holds the state shared by the concrete providers. mu
// serializes state changes and redraws; out is swapped atomically so readers
// never see a raster that is still being drawn.
type providerBase struct {
	mu            sync.Mutex
	active        bool
	activeIgnored bool
	looping       bool
	closed        bool
	post          PostChain
	scratch       *image.NRGBA
	handle        *CacheHandle
	out           atomic.Pointer[frameOutput]
}

// Image returns the last published raster.
func (b *providerBase) Image() *image.NRGBA {
	if o := b.out.Load(); o != nil {
		return o.img
	}
	return emptyRaster
}

// Anchor returns the offset of the last published raster.
func (b *providerBase) Anchor() image.Point {
	if o := b.out.Load(); o != nil {
		return o.anchor
	}
	return image.Point{}
}

// IsActive reports the activation state.
func (b *providerBase) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// IsLooping reports whether the sequence wraps.
func (b *providerBase) IsLooping() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.looping
}

// SetLooping enables or disables wrapping.
func (b *providerBase) SetLooping(looping bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.looping = looping
}

func (b *providerBase) visible() bool {
	return !b.closed && (b.active || b.activeIgnored)
}

// render draws parts into a new raster covering bounds and publishes it.
// Invisible providers publish a cleared raster of the same size.
func (b *providerBase) render(bounds image.Rectangle, parts []SpriteFrame) {
	out, err := NewRaster(bounds.Dx(), bounds.Dy())
	if err != nil {
		warnf("frame raster: %v", err)
		b.out.Store(&frameOutput{img: emptyRaster})
		return
	}
	if b.visible() {
		for _, f := range parts {
			if f.Image == nil || f.Image.Rect.Empty() {
				continue
			}
			w, h := f.Image.Rect.Dx(), f.Image.Rect.Dy()
			b.scratch = ensureScratch(b.scratch, w, h)
			copyRaster(b.scratch, f.Image)
			b.post.Apply(b.scratch)
			at := f.bounds(b.post.Mirror).Min.Sub(bounds.Min)
			blitOver(out, b.scratch, at)
		}
	}
	b.out.Store(&frameOutput{img: out, anchor: bounds.Min})
}

// release drops the cache handle and publishes an empty raster.
func (b *providerBase) release() {
	b.closed = true
	b.active = false
	if b.handle != nil {
		b.handle.Release()
		b.handle = nil
	}
	b.out.Store(&frameOutput{img: emptyRaster})
}

// NullProvider is the placeholder that stands in before a real provider is
// needed. It never renders and never advances.
type NullProvider struct{}

func (NullProvider) Activate()             {}
func (NullProvider) Deactivate()           {}
func (NullProvider) IsActive() bool        { return false }
func (NullProvider) SetActiveIgnored(bool) {}
func (NullProvider) AdvanceFrame() bool    { return false }
func (NullProvider) ResetFrame()           {}
func (NullProvider) IsLooping() bool       { return false }
func (NullProvider) SetLooping(bool)       {}
func (NullProvider) FrameIndex() int       { return 0 }
func (NullProvider) Image() *image.NRGBA   { return emptyRaster }
func (NullProvider) Anchor() image.Point   { return image.Point{} }
func (NullProvider) Close()                {}

// LazyProvider defers building a provider until it is first activated, reset
// or advanced. Until then, and if the factory fails, a NullProvider stands in.
// Looping and active-ignored settings made before the build are applied to
// the built provider.
type LazyProvider struct {
	mu      sync.Mutex
	factory func() (FrameProvider, error)
	p       FrameProvider
	built   bool
	closed  bool

	looping bool
	ignored bool
}

// NewLazyProvider wraps factory.
func NewLazyProvider(factory func() (FrameProvider, error)) *LazyProvider {
	return &LazyProvider{factory: factory, p: NullProvider{}}
}

// Instantiated reports whether the factory has produced a real provider.
func (l *LazyProvider) Instantiated() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, null := l.p.(NullProvider)
	return l.built && !null
}

// current returns the wrapped provider without building it.
func (l *LazyProvider) current() FrameProvider {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p
}

// need builds the real provider on first use.
func (l *LazyProvider) need() FrameProvider {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.built || l.closed {
		return l.p
	}
	l.built = true
	p, err := l.factory()
	if err != nil {
		warnf("frame provider: %v", err)
		return l.p
	}
	if p != nil {
		p.SetLooping(l.looping)
		p.SetActiveIgnored(l.ignored)
		l.p = p
	}
	return l.p
}

func (l *LazyProvider) IsLooping() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.built {
		return l.p.IsLooping()
	}
	return l.looping
}

func (l *LazyProvider) SetLooping(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.looping = v
	l.p.SetLooping(v)
}

func (l *LazyProvider) SetActiveIgnored(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ignored = v
	l.p.SetActiveIgnored(v)
}

func (l *LazyProvider) Activate()           { l.need().Activate() }
func (l *LazyProvider) Deactivate()         { l.current().Deactivate() }
func (l *LazyProvider) IsActive() bool      { return l.current().IsActive() }
func (l *LazyProvider) AdvanceFrame() bool  { return l.need().AdvanceFrame() }
func (l *LazyProvider) ResetFrame()         { l.need().ResetFrame() }
func (l *LazyProvider) FrameIndex() int     { return l.current().FrameIndex() }
func (l *LazyProvider) Image() *image.NRGBA { return l.current().Image() }
func (l *LazyProvider) Anchor() image.Point { return l.current().Anchor() }

// Close closes the wrapped provider, if any was built.
func (l *LazyProvider) Close() {
	l.mu.Lock()
	p := l.p
	l.closed = true
	l.p = NullProvider{}
	l.mu.Unlock()
	p.Close()
}

var (
	_ FrameProvider = NullProvider{}
	_ FrameProvider = (*LazyProvider)(nil)
	_ FrameProvider = (*SpriteProvider)(nil)
	_ FrameProvider = (*EffectProvider)(nil)
)
