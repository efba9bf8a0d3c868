package listing

import (
	"context"
	"strconv"
	"sync"

	"github.com/jeffrigby/reacddit-sub000/internal/logging"
)

const (
	// defaultPageLimit is the page size for initial and forward fetches.
	defaultPageLimit = 25

	// condensedPageLimit replaces the default when the condensed display
	// mode is active and the location did not request an explicit limit.
	condensedPageLimit = 50

	// NewPageLimit is the larger page size used by FetchNew. A response of
	// exactly this many items triggers the full-replacement rule.
	NewPageLimit = 100

	// MaxListingItems caps a listing after a prepend merge. This is a
	// memory bound; the oldest tail entries are dropped.
	MaxListingItems = 500
)

// Settings is the read-only view of user preferences the Manager needs.
type Settings interface {
	// Condensed reports whether the condensed display mode is active.
	Condensed() bool
}

// Archiver persists fetched items. Archive failures are logged and ignored;
// they never affect listing status.
type Archiver interface {
	SaveItems(items []Item) (int, error)
}

// State is the full per-context listing state. Status and snapshot always
// change together: the Manager swaps immutable State values, so an observer
// can never see a status from one fetch paired with items from another.
type State struct {
	Target   Target
	Snapshot Snapshot
	Status   Status
	About    *About
	Err      error
}

// Manager orchestrates listing fetches per navigation context.
//
// One logical writer at a time per context: refresh operations refuse to
// start unless the status is settled, and pagination carries its own
// in-flight guard because it can be triggered from multiple timers.
type Manager struct {
	mu         sync.Mutex
	provider   Provider
	cache      *LocationCache
	router     Router
	settings   Settings
	archive    Archiver
	onPaginate func(nav string)
	states     map[string]*State
	gens       map[string]uint64
	paginating map[string]bool
}

// NewManager creates a Manager. Router and settings may be nil; the Manager
// then uses defaults for page params.
func NewManager(p Provider, router Router, settings Settings) *Manager {
	return &Manager{
		provider:   p,
		cache:      NewLocationCache(),
		router:     router,
		settings:   settings,
		states:     make(map[string]*State),
		gens:       make(map[string]uint64),
		paginating: make(map[string]bool),
	}
}

// SetArchiver installs a best-effort item archiver.
func (m *Manager) SetArchiver(a Archiver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archive = a
}

// OnPagination registers a handler invoked after every successful forward
// pagination, with the affected context. The viewport monitor uses this to
// schedule forced re-scans.
func (m *Manager) OnPagination(fn func(nav string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPaginate = fn
}

// Cache exposes the location cache.
func (m *Manager) Cache() *LocationCache {
	return m.cache
}

// State returns a copy of the state for a context.
func (m *Manager) State(nav string) (State, bool) {
	nav = normContext(nav)
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[nav]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Status returns the listing status for a context.
func (m *Manager) Status(nav string) Status {
	st, ok := m.State(nav)
	if !ok {
		return Unloaded
	}
	return st.Status
}

// Release tears down a context's view. Any in-flight fetch result for the
// old generation is discarded on arrival rather than applied. The location
// cache entry is kept so a revisit within the freshness window skips the
// network.
func (m *Manager) Release(nav string) {
	nav = normContext(nav)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gens[nav]++
	delete(m.states, nav)
	delete(m.paginating, nav)
}

// FetchInitial loads the first page for a context, or serves the cached
// snapshot when it is still fresh.
func (m *Manager) FetchInitial(ctx context.Context, t Target, nav string) error {
	nav = normContext(nav)

	if e, ok := m.cache.Get(nav); ok {
		m.mu.Lock()
		m.states[nav] = &State{
			Target:   t,
			Snapshot: e.Snapshot,
			Status:   statusForCursor(e.Snapshot.After),
		}
		g := m.gens[nav]
		m.mu.Unlock()
		go m.fetchAbout(ctx, t, nav, g)
		return nil
	}

	m.mu.Lock()
	g := m.gens[nav]
	m.states[nav] = &State{Target: t, Status: Loading}
	m.mu.Unlock()

	page, err := m.provider.FetchPage(ctx, t, m.initialParams())

	m.mu.Lock()
	if m.gens[nav] != g {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.states[nav] = &State{Target: t, Status: Errored, Err: err}
		m.mu.Unlock()
		return err
	}
	snap := Snapshot{
		Items:    KeyByID(page.Items),
		After:    page.After,
		Before:   page.Before,
		Original: page.Original,
		Kind:     KindInit,
	}
	m.states[nav] = &State{
		Target:   t,
		Snapshot: snap,
		Status:   statusForCursor(snap.After),
	}
	m.cache.Put(nav, snap)
	m.mu.Unlock()

	m.archiveItems(page.Items)
	go m.fetchAbout(ctx, t, nav, g)
	return nil
}

// FetchNext appends the next page using the forward cursor. A call with no
// existing snapshot is a no-op: the view may not be mounted yet, which is a
// benign race, not an error.
func (m *Manager) FetchNext(ctx context.Context, nav string) error {
	nav = normContext(nav)

	m.mu.Lock()
	st, ok := m.states[nav]
	if !ok || st.Snapshot.Items == nil || !st.Status.Settled() || m.paginating[nav] {
		m.mu.Unlock()
		return nil
	}
	if st.Snapshot.After == "" {
		// Already loaded everything.
		m.mu.Unlock()
		return nil
	}
	g := m.gens[nav]
	m.paginating[nav] = true
	target := st.Target
	params := PageParams{
		After: st.Snapshot.After,
		Count: st.Snapshot.Items.Len(),
		Limit: m.pageLimit(),
	}
	next := *st
	next.Status = LoadingNext
	m.states[nav] = &next
	m.mu.Unlock()

	page, err := m.provider.FetchPage(ctx, target, params)

	m.mu.Lock()
	delete(m.paginating, nav)
	if m.gens[nav] != g {
		m.mu.Unlock()
		return nil
	}
	cur := m.states[nav]
	if err != nil {
		errSt := *cur
		errSt.Status = Errored
		errSt.Err = err
		m.states[nav] = &errSt
		m.mu.Unlock()
		return err
	}
	snap := cur.Snapshot
	snap.Items = MergeAppend(snap.Items, page.Items)
	snap.After = page.After
	snap.Kind = KindMore
	done := *cur
	done.Snapshot = snap
	done.Status = statusForCursor(snap.After)
	done.Err = nil
	m.states[nav] = &done
	m.cache.Put(nav, snap)
	hook := m.onPaginate
	m.mu.Unlock()

	m.archiveItems(page.Items)
	if hook != nil {
		hook(nav)
	}
	return nil
}

// FetchNew refreshes the head of the listing with posts newer than the
// earliest known item. Returns the number of items now in the listing window
// that the refresh produced, or 0 when nothing new arrived or the call was
// refused. A non-nil error is the failure sentinel.
//
// A response of exactly NewPageLimit items means more unseen posts may exist
// than were retrieved; the whole listing is replaced with the fresh page
// rather than risk an inconsistent interleaving with a stale window.
func (m *Manager) FetchNew(ctx context.Context, nav string, streaming bool) (int, error) {
	nav = normContext(nav)

	m.mu.Lock()
	st, ok := m.states[nav]
	if !ok || st.Snapshot.Items == nil || !st.Status.Settled() {
		m.mu.Unlock()
		return 0, nil
	}
	first, ok := st.Snapshot.Items.First()
	if !ok {
		m.mu.Unlock()
		return 0, nil
	}
	g := m.gens[nav]
	target := st.Target
	next := *st
	if streaming {
		next.Status = LoadingStream
	} else {
		next.Status = LoadingNew
	}
	m.states[nav] = &next
	m.mu.Unlock()

	page, err := m.provider.FetchPage(ctx, target, PageParams{
		Before: first.ID,
		Limit:  NewPageLimit,
	})

	m.mu.Lock()
	if m.gens[nav] != g {
		m.mu.Unlock()
		return 0, nil
	}
	cur := m.states[nav]
	if err != nil {
		errSt := *cur
		errSt.Status = Errored
		errSt.Err = err
		m.states[nav] = &errSt
		m.mu.Unlock()
		return 0, err
	}

	var snap Snapshot
	switch {
	case len(page.Items) == 0:
		done := *cur
		done.Status = Loaded
		m.states[nav] = &done
		m.mu.Unlock()
		return 0, nil

	case len(page.Items) == NewPageLimit:
		// A full page of unseen posts: the old window is too stale to
		// merge safely. Keep only the fresh page.
		snap = Snapshot{
			Items:    KeyByID(page.Items),
			After:    page.After,
			Before:   page.Before,
			Original: cur.Snapshot.Original,
			Kind:     KindNew,
		}

	default:
		snap = cur.Snapshot
		snap.Items = TruncateTail(MergePrepend(snap.Items, page.Items), MaxListingItems)
		if page.Before != "" {
			snap.Before = page.Before
		}
		snap.Kind = KindNew
	}

	done := *cur
	done.Snapshot = snap
	done.Status = Loaded
	done.Err = nil
	m.states[nav] = &done
	m.cache.Put(nav, snap)
	m.mu.Unlock()

	m.archiveItems(page.Items)
	return snap.Items.Len(), nil
}

// PatchItem applies a targeted field patch (vote/save state) to one item,
// swapping in a new snapshot so the update is atomic. Reports whether the
// item was found.
func (m *Manager) PatchItem(nav, id string, fn func(*Item)) bool {
	nav = normContext(nav)
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[nav]
	if !ok || st.Snapshot.Items == nil {
		return false
	}
	items, ok := st.Snapshot.Items.Patch(id, fn)
	if !ok {
		return false
	}
	snap := st.Snapshot
	snap.Items = items
	next := *st
	next.Snapshot = snap
	m.states[nav] = &next
	m.cache.Put(nav, snap)
	return true
}

// fetchAbout retrieves auxiliary target metadata. Best-effort: failures are
// logged and the listing status is untouched.
func (m *Manager) fetchAbout(ctx context.Context, t Target, nav string, g uint64) {
	about, err := m.provider.FetchAbout(ctx, t)
	if err != nil {
		logging.Debug("about fetch failed", "context", nav, "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[nav] != g {
		return
	}
	st, ok := m.states[nav]
	if !ok {
		return
	}
	next := *st
	next.About = &about
	m.states[nav] = &next
}

// archiveItems persists items best-effort.
func (m *Manager) archiveItems(items []Item) {
	m.mu.Lock()
	a := m.archive
	m.mu.Unlock()
	if a == nil || len(items) == 0 {
		return
	}
	if _, err := a.SaveItems(items); err != nil {
		logging.Warn("item archive failed", "count", len(items), "error", err)
	}
}

// initialParams merges the current location query string with pagination
// defaults.
func (m *Manager) initialParams() PageParams {
	p := PageParams{Limit: defaultPageLimit}
	explicit := false
	if m.router != nil {
		q := m.router.Query()
		p.After = q.Get("after")
		p.Before = q.Get("before")
		if c := q.Get("count"); c != "" {
			if n, err := strconv.Atoi(c); err == nil {
				p.Count = n
			}
		}
		if l := q.Get("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil && n > 0 {
				p.Limit = n
				explicit = true
			}
		}
		if s := q.Get("show"); s != "" {
			p.Show = s
		}
	}
	if !explicit && m.settings != nil && m.settings.Condensed() {
		p.Limit = condensedPageLimit
	}
	return p
}

// pageLimit is the page size for forward pagination.
func (m *Manager) pageLimit() int {
	if m.settings != nil && m.settings.Condensed() {
		return condensedPageLimit
	}
	return defaultPageLimit
}

func statusForCursor(after string) Status {
	if after == "" {
		return LoadedAll
	}
	return Loaded
}

func normContext(nav string) string {
	if nav == "" {
		return DefaultContext
	}
	return nav
}
