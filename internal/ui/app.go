package ui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeffrigby/reacddit-sub000/internal/listing"
	"github.com/jeffrigby/reacddit-sub000/internal/logging"
	"github.com/jeffrigby/reacddit-sub000/internal/monitor"
	"github.com/jeffrigby/reacddit-sub000/internal/store"
	"github.com/jeffrigby/reacddit-sub000/internal/viewport"
)

// frameRate drives the smooth-scroll animation.
const frameRate = time.Second / 30

// Rendered item heights in rows.
const (
	expandedRowHeight  = 3
	condensedRowHeight = 1
)

var (
	titleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#c9d1d9"))
	focusedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#58a6ff")).Bold(true)
	metaStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#8b949e"))
	stickiedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950"))
	actionableStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffa657"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#f85149"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

// App is the top-level TUI model. It renders the current listing and acts as
// the rendering collaborator: each item gets focused/visible/actionable
// state and a min-height hint from the viewport monitor.
type App struct {
	ctx     context.Context
	manager *listing.Manager
	mon     *monitor.Monitor
	geo     *Geometry
	archive *store.Store

	nav       string
	target    listing.Target
	condensed bool

	width   int
	height  int
	loading bool
	err     error
	spinner spinner.Model

	// Smooth scrolling with harmonica spring physics
	scrollSpring   harmonica.Spring
	scrollPos      float64
	scrollVelocity float64
	scrollTarget   float64
	cursor         int
}

// NewApp creates the TUI model. The archive store is optional.
func NewApp(ctx context.Context, mgr *listing.Manager, mon *monitor.Monitor, geo *Geometry, archive *store.Store, target listing.Target, nav string, condensed bool) App {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#58a6ff"))

	// Higher frequency = faster response, higher damping = less bounce
	spring := harmonica.NewSpring(harmonica.FPS(30), 6.0, 0.8)

	return App{
		ctx:          ctx,
		manager:      mgr,
		mon:          mon,
		geo:          geo,
		archive:      archive,
		nav:          nav,
		target:       target,
		condensed:    condensed,
		loading:      true,
		spinner:      s,
		scrollSpring: spring,
	}
}

// Init kicks off the initial fetch and the animation frame loop.
func (a App) Init() tea.Cmd {
	a.geo.SetContext(a.nav, nil)
	return tea.Batch(a.spinner.Tick, a.loadListing(), frame())
}

func frame() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg {
		return FrameMsg(t)
	})
}

// loadListing fetches the initial page, restoring the previous view state
// when the context was visited recently.
func (a App) loadListing() tea.Cmd {
	mgr, mon, nav, target := a.manager, a.mon, a.nav, a.target
	ctx := a.ctx
	return func() tea.Msg {
		err := mgr.FetchInitial(ctx, target, nav)
		if err == nil {
			mon.Restore(nav)
			mon.Force()
		}
		return ListingLoaded{Nav: nav, Err: err}
	}
}

// loadNew runs a manual backward refresh.
func (a App) loadNew() tea.Cmd {
	mgr, nav := a.manager, a.nav
	ctx := a.ctx
	return func() tea.Msg {
		n, err := mgr.FetchNew(ctx, nav, false)
		return NewPosts{Nav: nav, Count: n, Err: err}
	}
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mon.NoteResize()
		return a, nil

	case FrameMsg:
		moved := a.updateScroll()
		if y, ok := a.geo.TakeScroll(); ok {
			a.scrollPos = y
			a.scrollTarget = y
			a.cursor = a.cursorForOffset(y)
			moved = true
		}
		a.publishGeometry()
		if moved {
			a.mon.NoteScroll()
		}
		return a, frame()

	case ListingLoaded:
		a.loading = false
		a.err = msg.Err
		if msg.Err != nil {
			logging.Error("initial load failed", "context", msg.Nav, "error", msg.Err)
		}
		return a, nil

	case NewPosts:
		if msg.Err != nil {
			a.err = msg.Err
		} else if msg.Count > 0 {
			a.cursor = 0
			a.scrollTarget = 0
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		a.manager.Release(a.nav)
		return a, tea.Quit

	case "j", "down":
		items := a.items()
		if a.cursor < len(items)-1 {
			a.cursor++
			a.scrollTarget = a.offsetForCursor()
			a.markRead(items[a.cursor].ID)
		}
		return a, nil

	case "k", "up":
		if a.cursor > 0 {
			a.cursor--
			a.scrollTarget = a.offsetForCursor()
		}
		return a, nil

	case "n":
		return a, a.loadNew()

	case "r":
		if a.err != nil || a.manager.Status(a.nav) == listing.Errored {
			a.loading = true
			a.err = nil
			a.manager.Cache().Clear(a.nav)
			return a, a.loadListing()
		}
		return a, nil

	case "v":
		a.vote(true)
		return a, nil

	case "V":
		a.vote(false)
		return a, nil

	case "s":
		a.toggleSaved()
		return a, nil
	}

	return a, nil
}

// vote applies an up/down vote patch to the actionable item.
func (a *App) vote(up bool) {
	id := a.actionableID()
	if id == "" {
		return
	}
	a.manager.PatchItem(a.nav, id, func(it *listing.Item) {
		if it.Likes != nil && *it.Likes == up {
			it.Likes = nil // second press clears the vote
			return
		}
		v := up
		it.Likes = &v
	})
	if a.archive != nil {
		st, _ := a.manager.State(a.nav)
		if it, ok := st.Snapshot.Items.Get(id); ok {
			if err := a.archive.SetVote(id, it.Likes); err != nil {
				logging.Debug("vote persist failed", "id", id, "error", err)
			}
		}
	}
}

// toggleSaved flips saved state on the actionable item.
func (a *App) toggleSaved() {
	id := a.actionableID()
	if id == "" {
		return
	}
	var saved bool
	a.manager.PatchItem(a.nav, id, func(it *listing.Item) {
		it.Saved = !it.Saved
		saved = it.Saved
	})
	if a.archive != nil {
		if err := a.archive.SetSaved(id, saved); err != nil {
			logging.Debug("save persist failed", "id", id, "error", err)
		}
	}
}

func (a *App) markRead(id string) {
	if a.archive == nil || id == "" {
		return
	}
	if err := a.archive.MarkRead(id); err != nil {
		logging.Debug("read persist failed", "id", id, "error", err)
	}
}

// actionableID prefers the monitor's actionable item, falling back to the
// cursor row before the first scan lands.
func (a App) actionableID() string {
	if id := a.mon.State().ActionableID; id != "" {
		return id
	}
	items := a.items()
	if a.cursor >= 0 && a.cursor < len(items) {
		return items[a.cursor].ID
	}
	return ""
}

func (a App) items() []listing.Item {
	st, ok := a.manager.State(a.nav)
	if !ok || st.Snapshot.Items == nil {
		return nil
	}
	return st.Snapshot.Items.Items()
}

func (a App) rowHeight(id string) float64 {
	if h, ok := a.mon.MinHeight(a.nav, id); ok && h > 0 {
		return h
	}
	if a.condensed {
		return condensedRowHeight
	}
	return expandedRowHeight
}

// offsetForCursor returns the content offset of the cursor row.
func (a App) offsetForCursor() float64 {
	items := a.items()
	offset := 0.0
	for i, it := range items {
		if i == a.cursor {
			break
		}
		offset += a.rowHeight(it.ID)
	}
	return offset
}

// cursorForOffset finds the row whose span contains a content offset.
func (a App) cursorForOffset(y float64) int {
	items := a.items()
	offset := 0.0
	for i, it := range items {
		h := a.rowHeight(it.ID)
		if offset+h > y {
			return i
		}
		offset += h
	}
	return max(0, len(items)-1)
}

// updateScroll advances the spring animation. Reports whether the position
// changed this frame.
func (a *App) updateScroll() bool {
	before := a.scrollPos
	a.scrollPos, a.scrollVelocity = a.scrollSpring.Update(a.scrollPos, a.scrollVelocity, a.scrollTarget)
	return math.Abs(a.scrollPos-before) > 0.001
}

// publishGeometry hands the current rendered layout to the monitor.
func (a App) publishGeometry() {
	items := a.items()
	if len(items) == 0 {
		a.geo.Publish(nil, viewport.Metrics{})
		return
	}

	layout := make([]viewport.ItemLayout, 0, len(items))
	offset := 0.0
	for _, it := range items {
		h := a.rowHeight(it.ID)
		top := offset - a.scrollPos
		layout = append(layout, viewport.ItemLayout{
			ID:     it.ID,
			Top:    top,
			Bottom: top + h,
			Height: h,
		})
		offset += h
	}

	a.geo.Publish(layout, viewport.Metrics{
		Height:        float64(a.height),
		ScrollY:       a.scrollPos,
		ContentHeight: offset,
	})
}

// View renders the listing.
func (a App) View() string {
	if a.loading {
		content := fmt.Sprintf("%s Loading %s...", a.spinner.View(), a.contextLabel())
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, metaStyle.Render(content))
	}
	if a.err != nil {
		content := errorStyle.Render(fmt.Sprintf("Failed to load: %v", a.err)) + "\n" +
			statusStyle.Render("press r to retry")
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, content)
	}

	items := a.items()
	if len(items) == 0 {
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, metaStyle.Render("No posts"))
	}

	vp := a.mon.State()
	var b strings.Builder

	b.WriteString(a.renderHeader())
	b.WriteString("\n")

	visibleRows := a.height - 2
	row := 0
	offset := 0.0
	for i, it := range items {
		h := a.rowHeight(it.ID)
		top := offset - a.scrollPos
		offset += h
		if top+h < 0 || row >= visibleRows {
			continue
		}
		b.WriteString(a.renderItem(it, i, vp))
		b.WriteString("\n")
		row += int(h)
	}

	return b.String()
}

func (a App) renderHeader() string {
	st, _ := a.manager.State(a.nav)
	label := a.contextLabel()
	if st.About != nil && st.About.Title != "" {
		label = st.About.Title
	}
	status := statusStyle.Render(fmt.Sprintf("[%s]", a.manager.Status(a.nav)))
	return focusedStyle.Render(label) + " " + status
}

func (a App) renderItem(it listing.Item, idx int, vp viewport.State) string {
	marker := "  "
	if vp.ActionableID == it.ID {
		marker = actionableStyle.Render("▶ ")
	}

	title := titleStyle.Render(it.Title)
	if vp.FocusedID == it.ID || idx == a.cursor {
		title = focusedStyle.Render(it.Title)
	}
	if it.Stickied {
		title = stickiedStyle.Render("📌 ") + title
	}

	// Off-window items render as a height-reserving placeholder only.
	if len(vp.VisibleIDs) > 0 && !vp.VisibleIDs[it.ID] {
		return marker + metaStyle.Render("·")
	}

	vote := " "
	if it.Likes != nil {
		if *it.Likes {
			vote = actionableStyle.Render("▲")
		} else {
			vote = errorStyle.Render("▼")
		}
	}
	savedMark := ""
	if it.Saved {
		savedMark = stickiedStyle.Render(" ★")
	}

	if a.condensed {
		return fmt.Sprintf("%s%s %s %s%s", marker, vote, title, metaStyle.Render(fmt.Sprintf("(%d)", it.Score)), savedMark)
	}

	meta := metaStyle.Render(fmt.Sprintf("  r/%s · u/%s · %d points", it.Subreddit, it.Author, it.Score))
	return fmt.Sprintf("%s%s %s%s\n%s\n", marker, vote, title, savedMark, meta)
}

func (a App) contextLabel() string {
	if a.target.Name != "" {
		return "r/" + a.target.Name
	}
	return a.nav
}
