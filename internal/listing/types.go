// Package listing implements the listing data model, merge engine, location
// cache, and fetch orchestration for reacddit.
//
// A listing is the merged, ordered set of posts for one navigation context
// (a subreddit, a multi, a user page, a search, ...). Listings are built
// incrementally: an initial page, forward pagination via the "after" cursor,
// and backward refresh via the "before" cursor for streaming new posts.
package listing

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"
)

// DefaultContext is the navigation context used when none is available.
const DefaultContext = "front"

// Item is a single post in a listing.
//
// Items are immutable once merged, except for targeted field patches
// (vote/save state) applied through Manager.PatchItem.
type Item struct {
	ID        string // fullname, e.g. "t3_abc123" - globally unique
	Title     string
	Author    string
	Subreddit string
	URL       string
	Created   time.Time
	Stickied  bool
	Score     int
	Likes     *bool // true=upvoted, false=downvoted, nil=no vote
	Saved     bool
	Payload   json.RawMessage // raw provider data, passed through to rendering
}

// Page is one unit returned by a content provider.
type Page struct {
	Items     []Item
	After     string // forward cursor, empty when exhausted
	Before    string // backward cursor
	Original  *Item  // source post, for duplicates/comments targets
	RequestID string
}

// About is auxiliary metadata about a listing target, fetched best-effort
// after the initial page. Failures here never affect listing status.
type About struct {
	Title       string
	Description string
	Subscribers int
	Over18      bool
	Raw         json.RawMessage
}

// TargetKind identifies what a listing points at.
type TargetKind string

const (
	TargetSubreddit  TargetKind = "subreddit"
	TargetMulti      TargetKind = "multi"
	TargetUser       TargetKind = "user"
	TargetSearch     TargetKind = "search"
	TargetDuplicates TargetKind = "duplicates"
	TargetComments   TargetKind = "comments"
)

// Target describes what to fetch.
type Target struct {
	Kind      TargetKind
	Name      string // subreddit, multi, or user name; empty for front page
	Sort      string // "hot", "new", "top", "rising", "relevance", ...
	Query     string // search terms, for TargetSearch
	Timeframe string // "hour", "day", "week", ... for time-ranged sorts
	Article   string // article id, for TargetDuplicates / TargetComments
	User      string // owning user, for TargetMulti / TargetUser
}

// PageParams are the pagination options sent to the provider.
type PageParams struct {
	After  string
	Before string
	Count  int
	Limit  int
	Show   string
}

// Values encodes the params as a query string fragment.
func (p PageParams) Values() url.Values {
	v := url.Values{}
	if p.After != "" {
		v.Set("after", p.After)
	}
	if p.Before != "" {
		v.Set("before", p.Before)
	}
	if p.Count > 0 {
		v.Set("count", strconv.Itoa(p.Count))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Show != "" {
		v.Set("show", p.Show)
	}
	return v
}

// Provider is the content provider consumed by the Manager.
type Provider interface {
	// FetchPage retrieves one page of items for a target.
	FetchPage(ctx context.Context, t Target, p PageParams) (Page, error)

	// FetchAbout retrieves auxiliary metadata for a target.
	FetchAbout(ctx context.Context, t Target) (About, error)
}

// Router exposes the current navigation location. The Manager reads the query
// string when building page params; it never changes location.
type Router interface {
	// Context returns the current navigation context key.
	Context() string

	// Query returns the current location query string values.
	Query() url.Values
}

// Kind records how a snapshot was last produced.
type Kind string

const (
	KindInit Kind = "init" // initial load
	KindMore Kind = "more" // forward pagination appended
	KindNew  Kind = "new"  // backward refresh prepended or replaced
)

// Status is the per-context listing state machine.
type Status int

const (
	Unloaded Status = iota
	Loading
	LoadingNext
	LoadingNew
	LoadingStream
	Loaded
	LoadedAll // no forward cursor remains
	Errored
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case LoadingNext:
		return "loadingNext"
	case LoadingNew:
		return "loadingNew"
	case LoadingStream:
		return "loadingStream"
	case Loaded:
		return "loaded"
	case LoadedAll:
		return "loadedAll"
	case Errored:
		return "error"
	default:
		return "unknown"
	}
}

// Settled reports whether the status allows a new refresh operation to start.
func (s Status) Settled() bool {
	return s == Loaded || s == LoadedAll
}

// Snapshot is the merged listing for one navigation context.
type Snapshot struct {
	Items    *ItemMap
	After    string
	Before   string
	Original *Item // source post, for duplicates/comments targets
	Kind     Kind
}
