// Package viewport computes navigation-relevant state from raw on-screen
// geometry.
//
// The computation is a pure function over a layout snapshot, deliberately
// decoupled from how items are rendered or how geometry is sampled. The
// monitor package drives it from timers and scroll/resize events.
package viewport

// Geometry constants. The visible window is intentionally larger than the
// physical viewport so items just off-screen get full content rendered ahead
// of scrolling.
const (
	// visibleAbove admits items whose bottom edge is up to this many units
	// above the top of the viewport.
	visibleAbove = 380

	// visibleBelow admits items whose top edge is up to this many units
	// below the bottom of the viewport.
	visibleBelow = 400

	// focusBottomInset: the focused item is the first visible item whose
	// bottom edge sits more than this far below the viewport top.
	focusBottomInset = 55

	// actionTopInset: the actionable candidate is the first item whose top
	// edge sits more than this far below the viewport top.
	actionTopInset = 16

	// actionFoldInset: the candidate must also start at least this far
	// above the fold, otherwise the previous item is actionable.
	actionFoldInset = 16
)

// ItemLayout is the measured geometry of one rendered item. Top and Bottom
// are offsets relative to the viewport top; Height is the rendered height.
type ItemLayout struct {
	ID       string
	Top      float64
	Bottom   float64
	Height   float64
	Playable bool // item embeds playable media
	Paused   bool // media is currently paused
}

// Metrics describes the viewport itself for one pass.
type Metrics struct {
	Height        float64 // visible viewport height
	ScrollX       float64
	ScrollY       float64
	ContentHeight float64 // total height of all rendered content
}

// State is the result of one geometry pass. It is computed whole and applied
// atomically; consumers never see a partially updated pass.
type State struct {
	FocusedID    string
	ActionableID string
	VisibleIDs   map[string]bool
	MinHeights   map[string]float64
	ResumeIDs    []string // in-view playable media currently paused
}

// Compute derives focus, visibility, and actionability from a layout
// snapshot, processing items in document order in a single pass.
//
// Entries with an empty ID or non-positive height are skipped rather than
// aborting the pass; a missing element is a per-item anomaly, not an error.
func Compute(layout []ItemLayout, m Metrics) State {
	st := State{
		VisibleIDs: make(map[string]bool),
		MinHeights: make(map[string]float64),
	}

	prevID := ""
	actionDecided := false

	for _, it := range layout {
		if it.ID == "" || it.Height <= 0 {
			continue
		}

		visible := it.Bottom >= -visibleAbove && it.Top-m.Height <= visibleBelow
		if visible {
			st.VisibleIDs[it.ID] = true
			st.MinHeights[it.ID] = it.Height

			if st.FocusedID == "" && it.Bottom-focusBottomInset > 0 {
				st.FocusedID = it.ID
			}
			if it.Playable && it.Paused {
				st.ResumeIDs = append(st.ResumeIDs, it.ID)
			}
		}

		if !actionDecided && it.Top-actionTopInset > 0 {
			if it.Top-m.Height <= -actionFoldInset {
				st.ActionableID = it.ID
			} else {
				// Candidate is barely below the fold; act on the
				// item before it instead.
				st.ActionableID = prevID
			}
			actionDecided = true
		}

		prevID = it.ID
	}

	return st
}

// Equal reports whether two states would drive identical rendering.
func (s State) Equal(o State) bool {
	if s.FocusedID != o.FocusedID || s.ActionableID != o.ActionableID {
		return false
	}
	if len(s.VisibleIDs) != len(o.VisibleIDs) {
		return false
	}
	for id := range s.VisibleIDs {
		if !o.VisibleIDs[id] {
			return false
		}
	}
	return true
}
