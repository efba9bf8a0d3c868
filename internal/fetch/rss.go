package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/jeffrigby/reacddit-sub000/internal/listing"
)

// maxConcurrentFeeds limits parallel feed fetches for multi-feed targets.
const maxConcurrentFeeds = 4

// offsetCursorPrefix marks the synthetic cursors the bridge hands out. RSS
// has no native continuation tokens, so pagination is by offset into the
// merged, newest-first item list.
const offsetCursorPrefix = "offset:"

// RSSBridge serves plain RSS/Atom feeds through the listing.Provider
// interface. A target name maps to one or more feed URLs.
type RSSBridge struct {
	client *http.Client
	ua     string
	feeds  map[string][]string
}

// NewRSSBridge creates a bridge over the given name -> feed URL mapping.
func NewRSSBridge(feeds map[string][]string, timeout time.Duration, userAgent string) *RSSBridge {
	return &RSSBridge{
		client: &http.Client{Timeout: timeout},
		ua:     userAgent,
		feeds:  feeds,
	}
}

// FetchPage retrieves a window of the merged feed for a target. Items are
// ordered newest first; the after cursor is an offset into that ordering.
func (b *RSSBridge) FetchPage(ctx context.Context, t listing.Target, p listing.PageParams) (listing.Page, error) {
	urls, ok := b.feeds[t.Name]
	if !ok || len(urls) == 0 {
		return listing.Page{}, fmt.Errorf("no feeds configured for %q", t.Name)
	}

	items, err := b.fetchAll(ctx, urls)
	if err != nil {
		return listing.Page{}, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Created.After(items[j].Created)
	})

	limit := p.Limit
	if limit <= 0 {
		limit = 25
	}

	start := parseOffsetCursor(p.After)
	if p.Before != "" {
		// Backward refresh: everything newer than the window start.
		// The bridge refetches, so "new" items are simply the head.
		start = 0
		if idx := indexOfID(items, p.Before); idx >= 0 {
			items = items[:idx]
		}
	}
	if start >= len(items) {
		return listing.Page{}, nil
	}

	end := start + limit
	after := ""
	if end < len(items) {
		after = offsetCursorPrefix + strconv.Itoa(end)
	} else {
		end = len(items)
	}

	page := listing.Page{
		Items: items[start:end],
		After: after,
	}
	if len(page.Items) > 0 {
		page.Before = page.Items[0].ID
	}
	return page, nil
}

// FetchAbout returns the first feed's title as listing metadata.
func (b *RSSBridge) FetchAbout(ctx context.Context, t listing.Target) (listing.About, error) {
	urls, ok := b.feeds[t.Name]
	if !ok || len(urls) == 0 {
		return listing.About{}, fmt.Errorf("no feeds configured for %q", t.Name)
	}

	feed, err := b.fetchFeed(ctx, urls[0])
	if err != nil {
		return listing.About{}, err
	}
	return listing.About{
		Title:       feed.Title,
		Description: feed.Description,
	}, nil
}

// fetchAll fetches every feed URL with bounded parallelism and merges the
// converted items.
func (b *RSSBridge) fetchAll(ctx context.Context, urls []string) ([]listing.Item, error) {
	var mu sync.Mutex
	var items []listing.Item

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFeeds)

	for _, u := range urls {
		g.Go(func() error {
			feed, err := b.fetchFeed(gctx, u)
			if err != nil {
				return fmt.Errorf("feed %s: %w", u, err)
			}
			converted := convertFeed(feed, time.Now())
			mu.Lock()
			items = append(items, converted...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// fetchFeed retrieves and parses one feed.
func (b *RSSBridge) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if b.ua != "" {
		req.Header.Set("User-Agent", b.ua)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	parser := gofeed.NewParser()
	feed, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}

// convertFeed maps gofeed items into listing items.
func convertFeed(feed *gofeed.Feed, fetchTime time.Time) []listing.Item {
	items := make([]listing.Item, 0, len(feed.Items))
	for _, fi := range feed.Items {
		created := fetchTime
		if fi.PublishedParsed != nil {
			created = *fi.PublishedParsed
		} else if fi.UpdatedParsed != nil {
			created = *fi.UpdatedParsed
		}

		author := ""
		if fi.Author != nil {
			author = fi.Author.Name
		}

		items = append(items, listing.Item{
			ID:        "rss_" + feedItemID(fi),
			Title:     fi.Title,
			Author:    author,
			Subreddit: feed.Title,
			URL:       fi.Link,
			Created:   created,
		})
	}
	return items
}

// feedItemID creates a deterministic ID for a feed item. Uses the GUID if
// available, otherwise hashes the URL.
func feedItemID(fi *gofeed.Item) string {
	if fi.GUID != "" {
		return hashString(fi.GUID)
	}
	if fi.Link != "" {
		return hashString(fi.Link)
	}
	key := fi.Title
	if fi.PublishedParsed != nil {
		key += fi.PublishedParsed.String()
	}
	return hashString(key)
}

// hashString creates a short hash of a string for use as an ID.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}

// parseOffsetCursor extracts the offset from a synthetic cursor.
func parseOffsetCursor(cursor string) int {
	if !strings.HasPrefix(cursor, offsetCursorPrefix) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(cursor, offsetCursorPrefix))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// indexOfID finds the position of an item ID, or -1.
func indexOfID(items []listing.Item, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
