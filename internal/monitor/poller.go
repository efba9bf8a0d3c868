package monitor

import (
	"context"
	"time"

	"github.com/jeffrigby/reacddit-sub000/internal/listing"
	"github.com/jeffrigby/reacddit-sub000/internal/logging"
)

const (
	// DefaultPollInterval is the cadence of the streaming refresh.
	DefaultPollInterval = 30 * time.Second

	// streamScrollLimit suspends streaming once the user has scrolled
	// further than this from the top, so new posts don't shift content
	// they are reading.
	streamScrollLimit = 200
)

// Poller periodically pulls new posts into the current listing while the
// live-stream preference is enabled and the view is near the top.
type Poller struct {
	streamer Streamer
	monitor  *Monitor
	settings Settings
	router   listing.Router
	scrollY  func() float64
	interval time.Duration
}

// NewPoller creates a streaming poller. scrollY reports the current vertical
// scroll offset; nil means always eligible.
func NewPoller(s Streamer, mon *Monitor, settings Settings, router listing.Router, scrollY func() float64) *Poller {
	return &Poller{
		streamer: s,
		monitor:  mon,
		settings: settings,
		router:   router,
		scrollY:  scrollY,
		interval: DefaultPollInterval,
	}
}

// SetInterval overrides the poll cadence. Call before Start.
func (p *Poller) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

// Start runs the poll loop until the context is cancelled.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Poll(ctx)
			}
		}
	}()
}

// Poll runs one streaming refresh if the preference is on and the view has
// not been scrolled away from the top. A positive count forces an immediate
// monitor pass so the new posts are measured.
func (p *Poller) Poll(ctx context.Context) {
	if p.settings == nil || !p.settings.Stream() {
		return
	}
	if p.scrollY != nil && p.scrollY() > streamScrollLimit {
		return
	}

	nav := listing.DefaultContext
	if p.router != nil && p.router.Context() != "" {
		nav = p.router.Context()
	}

	n, err := p.streamer.FetchNew(ctx, nav, true)
	if err != nil {
		logging.Debug("stream refresh failed", "context", nav, "error", err)
		return
	}
	if n > 0 && p.monitor != nil {
		p.monitor.Force()
		p.monitor.Scan(ctx)
	}
}
