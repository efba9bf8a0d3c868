// Package monitor drives the viewport geometry scanner.
//
// The monitor samples rendered item geometry, feeds it through
// viewport.Compute, persists restoration snapshots, resumes paused media,
// and triggers forward pagination when scrolling approaches the end of
// content. Scans are cooperative: a pass only runs when a scroll/resize flag
// is pending or a forced run was requested.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jeffrigby/reacddit-sub000/internal/history"
	"github.com/jeffrigby/reacddit-sub000/internal/listing"
	"github.com/jeffrigby/reacddit-sub000/internal/logging"
	"github.com/jeffrigby/reacddit-sub000/internal/viewport"
)

const (
	// DefaultScanInterval is the polling cadence between passes.
	DefaultScanInterval = 250 * time.Millisecond

	// paginationMargin triggers a forward fetch when the scroll position
	// is within this many units of the end of content.
	paginationMargin = 2500

	// rescanShort and rescanLong are the delays for the two forced
	// re-scans scheduled after a pagination completes, so newly rendered
	// items are picked up.
	rescanShort = 250 * time.Millisecond
	rescanLong  = time.Second

	// focusReclaimDelay defers focus recovery out of the scan pass.
	focusReclaimDelay = 100 * time.Millisecond

	// maxHeightContexts caps the per-context min-height maps.
	maxHeightContexts = 7
)

// Sampler provides the raw geometry of currently rendered items. A false
// return means nothing is rendered and the pass should be skipped.
type Sampler interface {
	Sample() ([]viewport.ItemLayout, viewport.Metrics, bool)
}

// Pager is the slice of the listing manager the monitor needs to trigger
// forward pagination.
type Pager interface {
	Status(nav string) listing.Status
	FetchNext(ctx context.Context, nav string) error
}

// Streamer is the slice of the listing manager the streaming poller needs.
type Streamer interface {
	FetchNew(ctx context.Context, nav string, streaming bool) (int, error)
}

// Settings is the read-only preference view consumed here.
type Settings interface {
	Autoplay() bool
	Stream() bool
}

// MediaController resumes playable media that platforms paused unexpectedly.
type MediaController interface {
	Resume(id string)
}

// FocusGuard detects and corrects input focus stolen by embedded frames, so
// global keyboard shortcuts keep working.
type FocusGuard interface {
	InEmbeddedFrame() bool
	Reclaim()
}

// ScrollRestorer applies a saved scroll position during view restoration.
type ScrollRestorer interface {
	SetScroll(x, y float64)
}

// Monitor owns the scan loop for the currently displayed view.
type Monitor struct {
	sampler  Sampler
	history  *history.Store
	pager    Pager
	router   listing.Router
	settings Settings
	media    MediaController
	focus    FocusGuard
	restorer ScrollRestorer
	interval time.Duration

	mu          sync.Mutex
	state       viewport.State
	scrollDirty bool
	resizeDirty bool
	forced      bool
	paginating  bool
	heights     map[string]map[string]float64
	touched     map[string]time.Time
}

// New creates a Monitor. The media controller, focus guard, and scroll
// restorer are optional and installed with the Set methods.
func New(sampler Sampler, hist *history.Store, pager Pager, router listing.Router, settings Settings) *Monitor {
	return &Monitor{
		sampler:  sampler,
		history:  hist,
		pager:    pager,
		router:   router,
		settings: settings,
		interval: DefaultScanInterval,
		heights:  make(map[string]map[string]float64),
		touched:  make(map[string]time.Time),
	}
}

// SetMedia installs the media controller.
func (m *Monitor) SetMedia(mc MediaController) { m.media = mc }

// SetFocusGuard installs the focus guard.
func (m *Monitor) SetFocusGuard(fg FocusGuard) { m.focus = fg }

// SetRestorer installs the scroll restorer.
func (m *Monitor) SetRestorer(r ScrollRestorer) { m.restorer = r }

// SetInterval overrides the polling cadence. Call before Start.
func (m *Monitor) SetInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

// Start runs the scan loop until the context is cancelled. The first pass is
// forced so a freshly mounted view is scanned immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.Force()
	go func() {
		m.Scan(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Scan(ctx)
			}
		}
	}()
}

// NoteScroll marks that a scroll event occurred since the last pass.
func (m *Monitor) NoteScroll() {
	m.mu.Lock()
	m.scrollDirty = true
	m.mu.Unlock()
}

// NoteResize marks that a resize event occurred since the last pass.
func (m *Monitor) NoteResize() {
	m.mu.Lock()
	m.resizeDirty = true
	m.mu.Unlock()
}

// Force requests an unconditional pass on the next tick.
func (m *Monitor) Force() {
	m.mu.Lock()
	m.forced = true
	m.mu.Unlock()
}

// ScheduleRescans queues the two delayed forced passes that follow a
// pagination, so items rendered by the new page are measured. Suitable as a
// listing.Manager OnPagination handler.
func (m *Monitor) ScheduleRescans(ctx context.Context) {
	for _, d := range []time.Duration{rescanShort, rescanLong} {
		time.AfterFunc(d, func() {
			if ctx.Err() != nil {
				return
			}
			m.Force()
		})
	}
}

// State returns the last computed viewport state.
func (m *Monitor) State() viewport.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// MinHeight returns the recorded height hint for an item in a context.
func (m *Monitor) MinHeight(nav, id string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.heights[nav][id]
	return h, ok
}

// Restore applies the saved snapshot for a revisited context, if one is
// still live, instead of recomputing from scratch. Reports whether a
// snapshot was applied; normal scanning resumes either way.
func (m *Monitor) Restore(nav string) bool {
	snap, ok := m.history.Get(nav)
	if !ok {
		return false
	}
	m.mu.Lock()
	m.state = snap.Viewport
	m.mu.Unlock()
	if m.restorer != nil {
		m.restorer.SetScroll(snap.Scroll.X, snap.Scroll.Y)
	}
	return true
}

// Scan runs one pass if a scroll/resize flag is pending or a forced run was
// requested. No error escapes a pass; per-item anomalies are skipped inside
// viewport.Compute.
func (m *Monitor) Scan(ctx context.Context) {
	m.mu.Lock()
	run := m.scrollDirty || m.resizeDirty || m.forced
	m.scrollDirty, m.resizeDirty, m.forced = false, false, false
	m.mu.Unlock()
	if !run {
		return
	}

	layout, metrics, ok := m.sampler.Sample()
	if !ok {
		return
	}

	st := viewport.Compute(layout, metrics)
	nav := m.nav()

	m.mu.Lock()
	merged := m.mergeHeights(nav, st.MinHeights)
	st.MinHeights = merged
	m.state = st
	m.mu.Unlock()

	m.history.Put(nav, history.Snapshot{
		Viewport: st,
		Scroll:   history.Scroll{X: metrics.ScrollX, Y: metrics.ScrollY},
	})

	if m.media != nil && m.settings != nil && m.settings.Autoplay() {
		for _, id := range st.ResumeIDs {
			m.media.Resume(id)
		}
	}

	m.maybePaginate(ctx, nav, metrics)

	if m.focus != nil && m.focus.InEmbeddedFrame() {
		time.AfterFunc(focusReclaimDelay, func() {
			if ctx.Err() != nil {
				return
			}
			m.focus.Reclaim()
		})
	}
}

// mergeHeights folds freshly measured heights into the per-context map and
// returns a copy of the merged map. Caller holds the lock.
func (m *Monitor) mergeHeights(nav string, fresh map[string]float64) map[string]float64 {
	hm, ok := m.heights[nav]
	if !ok {
		m.evictHeightContexts()
		hm = make(map[string]float64)
		m.heights[nav] = hm
	}
	for id, h := range fresh {
		hm[id] = h
	}
	m.touched[nav] = time.Now()

	out := make(map[string]float64, len(hm))
	for id, h := range hm {
		out[id] = h
	}
	return out
}

// evictHeightContexts drops the oldest-touched contexts to make room for a
// new one. Caller holds the lock.
func (m *Monitor) evictHeightContexts() {
	for len(m.heights) >= maxHeightContexts {
		oldest := ""
		var oldestAt time.Time
		for nav := range m.heights {
			at := m.touched[nav]
			if oldest == "" || at.Before(oldestAt) {
				oldest = nav
				oldestAt = at
			}
		}
		delete(m.heights, oldest)
		delete(m.touched, oldest)
	}
}

// maybePaginate triggers a forward fetch when scrolled near the end of
// content. Guarded so overlapping triggers from the interval and forced
// re-scans collapse into one fetch.
func (m *Monitor) maybePaginate(ctx context.Context, nav string, metrics viewport.Metrics) {
	if m.pager == nil {
		return
	}
	if m.pager.Status(nav) != listing.Loaded {
		return
	}
	if metrics.ScrollY+metrics.Height <= metrics.ContentHeight-paginationMargin {
		return
	}

	m.mu.Lock()
	if m.paginating {
		m.mu.Unlock()
		return
	}
	m.paginating = true
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			m.paginating = false
			m.mu.Unlock()
		}()
		if err := m.pager.FetchNext(ctx, nav); err != nil {
			logging.Debug("pagination fetch failed", "context", nav, "error", err)
		}
	}()
}

// nav returns the current navigation context.
func (m *Monitor) nav() string {
	if m.router == nil {
		return listing.DefaultContext
	}
	if c := m.router.Context(); c != "" {
		return c
	}
	return listing.DefaultContext
}
