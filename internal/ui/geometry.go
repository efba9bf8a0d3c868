package ui

import (
	"net/url"
	"sync"

	"github.com/jeffrigby/reacddit-sub000/internal/viewport"
)

// Geometry bridges the TUI model and the viewport monitor. The model is a
// value that Bubble Tea copies on every update, so the monitor's stable
// collaborators (sampler, router, scroll restorer) live here instead.
type Geometry struct {
	mu      sync.Mutex
	layout  []viewport.ItemLayout
	metrics viewport.Metrics
	ready   bool

	nav   string
	query url.Values

	pendingScroll      bool
	pendingX, pendingY float64
}

// NewGeometry returns an empty bridge.
func NewGeometry() *Geometry {
	return &Geometry{}
}

// Publish records the latest rendered layout. Called by the TUI every frame.
func (g *Geometry) Publish(layout []viewport.ItemLayout, m viewport.Metrics) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.layout = layout
	g.metrics = m
	g.ready = len(layout) > 0
}

// Sample returns the last published layout. Implements the monitor's sampler.
func (g *Geometry) Sample() ([]viewport.ItemLayout, viewport.Metrics, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.ready {
		return nil, viewport.Metrics{}, false
	}
	layout := make([]viewport.ItemLayout, len(g.layout))
	copy(layout, g.layout)
	return layout, g.metrics, true
}

// ScrollY reports the current vertical scroll offset.
func (g *Geometry) ScrollY() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.metrics.ScrollY
}

// SetScroll queues a scroll restoration for the TUI to pick up on its next
// frame. Implements the monitor's scroll restorer.
func (g *Geometry) SetScroll(x, y float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pendingScroll = true
	g.pendingX, g.pendingY = x, y
}

// TakeScroll returns a queued scroll restoration once.
func (g *Geometry) TakeScroll() (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.pendingScroll {
		return 0, false
	}
	g.pendingScroll = false
	return g.pendingY, true
}

// SetContext records the current navigation context and its query values.
func (g *Geometry) SetContext(nav string, query url.Values) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nav = nav
	g.query = query
}

// Context returns the current navigation context key.
func (g *Geometry) Context() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nav
}

// Query returns the current location query values.
func (g *Geometry) Query() url.Values {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.query == nil {
		return url.Values{}
	}
	return g.query
}
