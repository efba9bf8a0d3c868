// Package fetch provides content providers for reacddit.
//
// Client talks to a reddit-shaped JSON listing API; RSSBridge maps plain
// RSS/Atom feeds onto the same paging interface. Both implement
// listing.Provider.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jeffrigby/reacddit-sub000/internal/listing"
)

// DefaultBaseURL is the upstream content API.
const DefaultBaseURL = "https://www.reddit.com"

// Client fetches listing pages from the upstream JSON API.
type Client struct {
	client  *http.Client
	base    string
	ua      string
	limiter *rate.Limiter
}

// NewClient creates a Client with the given HTTP timeout and request rate.
// An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, userAgent string, timeout time.Duration, rps float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		base:    strings.TrimRight(baseURL, "/"),
		ua:      userAgent,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// thing is the reddit envelope around every payload.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// listingData is the body of a kind=Listing thing.
type listingData struct {
	After    string  `json:"after"`
	Before   string  `json:"before"`
	Children []thing `json:"children"`
}

// linkData is the subset of a post payload this client cares about. The full
// payload travels along as listing.Item.Payload.
type linkData struct {
	Name       string  `json:"name"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Subreddit  string  `json:"subreddit"`
	URL        string  `json:"url"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
	Score      int     `json:"score"`
	Likes      *bool   `json:"likes"`
	Saved      bool    `json:"saved"`
}

// aboutData is the body of the about endpoint.
type aboutData struct {
	Title             string `json:"title"`
	PublicDescription string `json:"public_description"`
	Subscribers       int    `json:"subscribers"`
	Over18            bool   `json:"over18"`
}

// FetchPage retrieves one page of items for a target.
func (c *Client) FetchPage(ctx context.Context, t listing.Target, p listing.PageParams) (listing.Page, error) {
	path, extra, err := targetPath(t)
	if err != nil {
		return listing.Page{}, err
	}

	q := p.Values()
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("raw_json", "1")

	reqID := uuid.NewString()
	body, err := c.get(ctx, path, q, reqID)
	if err != nil {
		return listing.Page{}, err
	}

	page, err := decodePage(body, t.Kind)
	if err != nil {
		return listing.Page{}, err
	}
	page.RequestID = reqID
	return page, nil
}

// FetchAbout retrieves auxiliary metadata for a target. Only targets with a
// real about endpoint return data; others get an empty About.
func (c *Client) FetchAbout(ctx context.Context, t listing.Target) (listing.About, error) {
	var path string
	switch t.Kind {
	case listing.TargetSubreddit:
		if t.Name == "" {
			return listing.About{}, nil
		}
		path = fmt.Sprintf("/r/%s/about.json", t.Name)
	case listing.TargetUser:
		path = fmt.Sprintf("/user/%s/about.json", t.Name)
	default:
		return listing.About{}, nil
	}

	body, err := c.get(ctx, path, url.Values{"raw_json": {"1"}}, uuid.NewString())
	if err != nil {
		return listing.About{}, err
	}

	var env thing
	if err := json.Unmarshal(body, &env); err != nil {
		return listing.About{}, fmt.Errorf("failed to parse about response: %w", err)
	}
	var about aboutData
	if err := json.Unmarshal(env.Data, &about); err != nil {
		return listing.About{}, fmt.Errorf("failed to parse about data: %w", err)
	}
	return listing.About{
		Title:       about.Title,
		Description: about.PublicDescription,
		Subscribers: about.Subscribers,
		Over18:      about.Over18,
		Raw:         env.Data,
	}, nil
}

// get performs one rate-limited request and returns the response body.
func (c *Client) get(ctx context.Context, path string, q url.Values, reqID string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// targetPath maps a target to its API path plus target-specific query params.
func targetPath(t listing.Target) (string, url.Values, error) {
	sort := t.Sort
	if sort == "" {
		sort = "hot"
	}
	extra := url.Values{}
	if t.Timeframe != "" {
		extra.Set("t", t.Timeframe)
	}

	switch t.Kind {
	case listing.TargetSubreddit:
		if t.Name == "" {
			return fmt.Sprintf("/%s.json", sort), extra, nil
		}
		return fmt.Sprintf("/r/%s/%s.json", t.Name, sort), extra, nil

	case listing.TargetMulti:
		return fmt.Sprintf("/user/%s/m/%s/%s.json", t.User, t.Name, sort), extra, nil

	case listing.TargetUser:
		extra.Set("sort", sort)
		return fmt.Sprintf("/user/%s/submitted.json", t.Name), extra, nil

	case listing.TargetSearch:
		extra.Set("q", t.Query)
		extra.Set("sort", sort)
		if t.Name != "" {
			extra.Set("restrict_sr", "on")
			return fmt.Sprintf("/r/%s/search.json", t.Name), extra, nil
		}
		return "/search.json", extra, nil

	case listing.TargetDuplicates:
		return fmt.Sprintf("/duplicates/%s.json", t.Article), extra, nil

	case listing.TargetComments:
		return fmt.Sprintf("/comments/%s.json", t.Article), extra, nil

	default:
		return "", nil, fmt.Errorf("unknown target kind: %q", t.Kind)
	}
}

// decodePage parses a listing response. Duplicates and comments endpoints
// return two listings: the source post followed by the result listing.
func decodePage(body []byte, kind listing.TargetKind) (listing.Page, error) {
	if kind == listing.TargetDuplicates || kind == listing.TargetComments {
		var pair []thing
		if err := json.Unmarshal(body, &pair); err != nil {
			return listing.Page{}, fmt.Errorf("failed to parse listing pair: %w", err)
		}
		if len(pair) < 2 {
			return listing.Page{}, fmt.Errorf("expected two listings, got %d", len(pair))
		}
		original, _, _, err := decodeListing(pair[0].Data)
		if err != nil {
			return listing.Page{}, err
		}
		items, after, before, err := decodeListing(pair[1].Data)
		if err != nil {
			return listing.Page{}, err
		}
		page := listing.Page{Items: items, After: after, Before: before}
		if len(original) > 0 {
			page.Original = &original[0]
		}
		return page, nil
	}

	var env thing
	if err := json.Unmarshal(body, &env); err != nil {
		return listing.Page{}, fmt.Errorf("failed to parse listing: %w", err)
	}
	items, after, before, err := decodeListing(env.Data)
	if err != nil {
		return listing.Page{}, err
	}
	return listing.Page{Items: items, After: after, Before: before}, nil
}

// decodeListing converts one listing body into items plus cursors.
func decodeListing(data json.RawMessage) ([]listing.Item, string, string, error) {
	var ld listingData
	if err := json.Unmarshal(data, &ld); err != nil {
		return nil, "", "", fmt.Errorf("failed to parse listing data: %w", err)
	}

	items := make([]listing.Item, 0, len(ld.Children))
	for _, child := range ld.Children {
		var link linkData
		if err := json.Unmarshal(child.Data, &link); err != nil {
			// Skip malformed children rather than failing the page.
			continue
		}
		if link.Name == "" {
			continue
		}
		items = append(items, listing.Item{
			ID:        link.Name,
			Title:     link.Title,
			Author:    link.Author,
			Subreddit: link.Subreddit,
			URL:       link.URL,
			Created:   time.Unix(int64(link.CreatedUTC), 0).UTC(),
			Stickied:  link.Stickied,
			Score:     link.Score,
			Likes:     link.Likes,
			Saved:     link.Saved,
			Payload:   child.Data,
		})
	}
	return items, ld.After, ld.Before, nil
}
