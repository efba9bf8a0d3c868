package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jeffrigby/reacddit-sub000/internal/listing"
)

func listingJSON(after string, names ...string) string {
	children := ""
	for i, name := range names {
		if i > 0 {
			children += ","
		}
		children += fmt.Sprintf(`{"kind":"t3","data":{"name":%q,"title":"Post %s","author":"alice","subreddit":"golang","url":"https://example.com/%s","created_utc":1700000000,"score":%d}}`, name, name, name, i+1)
	}
	return fmt.Sprintf(`{"kind":"Listing","data":{"after":%q,"before":"","children":[%s]}}`, after, children)
}

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(srv.URL, "reacddit-test/1.0", 5*time.Second, 1000)
	return c, srv
}

func TestFetchPageSubreddit(t *testing.T) {
	var gotPath, gotRawJSON, gotUA, gotReqID string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRawJSON = r.URL.Query().Get("raw_json")
		gotUA = r.Header.Get("User-Agent")
		gotReqID = r.Header.Get("X-Request-ID")
		fmt.Fprint(w, listingJSON("t3_c", "t3_a", "t3_b", "t3_c"))
	})
	defer srv.Close()

	page, err := c.FetchPage(context.Background(), listing.Target{
		Kind: listing.TargetSubreddit, Name: "golang", Sort: "hot",
	}, listing.PageParams{Limit: 25})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	if gotPath != "/r/golang/hot.json" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotRawJSON != "1" {
		t.Error("raw_json=1 should always be sent")
	}
	if gotUA != "reacddit-test/1.0" {
		t.Errorf("unexpected user agent %q", gotUA)
	}
	if gotReqID == "" || gotReqID != page.RequestID {
		t.Errorf("request id mismatch: header %q, page %q", gotReqID, page.RequestID)
	}

	if len(page.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(page.Items))
	}
	if page.After != "t3_c" {
		t.Errorf("unexpected cursor %q", page.After)
	}
	it := page.Items[0]
	if it.ID != "t3_a" || it.Author != "alice" || it.Subreddit != "golang" {
		t.Errorf("item mangled: %+v", it)
	}
	if it.Created != time.Unix(1700000000, 0).UTC() {
		t.Errorf("created time mangled: %v", it.Created)
	}
	if len(it.Payload) == 0 {
		t.Error("raw payload should travel with the item")
	}
}

func TestFetchPageFrontPage(t *testing.T) {
	var gotPath string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, listingJSON("", "t3_x"))
	})
	defer srv.Close()

	if _, err := c.FetchPage(context.Background(), listing.Target{Kind: listing.TargetSubreddit, Sort: "hot"}, listing.PageParams{}); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if gotPath != "/hot.json" {
		t.Errorf("front page should hit /hot.json, got %q", gotPath)
	}
}

func TestFetchPagePaginationParams(t *testing.T) {
	var gotQuery map[string][]string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, listingJSON("", "t3_x"))
	})
	defer srv.Close()

	_, err := c.FetchPage(context.Background(), listing.Target{
		Kind: listing.TargetSubreddit, Name: "golang", Sort: "top", Timeframe: "week",
	}, listing.PageParams{After: "t3_prev", Count: 25, Limit: 50})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	for key, want := range map[string]string{
		"after": "t3_prev", "count": "25", "limit": "50", "t": "week",
	} {
		if got := gotQuery[key]; len(got) != 1 || got[0] != want {
			t.Errorf("query %s: expected %q, got %v", key, want, got)
		}
	}
}

func TestFetchPageTargetPaths(t *testing.T) {
	tests := []struct {
		target listing.Target
		path   string
	}{
		{listing.Target{Kind: listing.TargetMulti, User: "bob", Name: "news", Sort: "new"}, "/user/bob/m/news/new.json"},
		{listing.Target{Kind: listing.TargetUser, Name: "bob", Sort: "new"}, "/user/bob/submitted.json"},
		{listing.Target{Kind: listing.TargetSearch, Query: "generics"}, "/search.json"},
		{listing.Target{Kind: listing.TargetSearch, Name: "golang", Query: "generics"}, "/r/golang/search.json"},
	}

	for _, tc := range tests {
		var gotPath string
		var gotQuery map[string][]string
		c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.Query()
			fmt.Fprint(w, listingJSON("", "t3_x"))
		})

		if _, err := c.FetchPage(context.Background(), tc.target, listing.PageParams{}); err != nil {
			t.Errorf("%v: %v", tc.target.Kind, err)
		}
		if gotPath != tc.path {
			t.Errorf("%v: expected path %q, got %q", tc.target.Kind, tc.path, gotPath)
		}
		if tc.target.Kind == listing.TargetSearch {
			if got := gotQuery["q"]; len(got) != 1 || got[0] != "generics" {
				t.Errorf("search query missing: %v", gotQuery)
			}
		}
		srv.Close()
	}
}

func TestFetchPageDuplicatesPair(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/duplicates/abc123.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprintf(w, "[%s,%s]",
			listingJSON("", "t3_abc123"),
			listingJSON("t3_dup2", "t3_dup1", "t3_dup2"),
		)
	})
	defer srv.Close()

	page, err := c.FetchPage(context.Background(), listing.Target{
		Kind: listing.TargetDuplicates, Article: "abc123",
	}, listing.PageParams{})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	if page.Original == nil || page.Original.ID != "t3_abc123" {
		t.Errorf("expected source post from the first listing, got %+v", page.Original)
	}
	if len(page.Items) != 2 || page.Items[0].ID != "t3_dup1" {
		t.Errorf("expected duplicates from the second listing, got %+v", page.Items)
	}
	if page.After != "t3_dup2" {
		t.Errorf("cursor should come from the second listing, got %q", page.After)
	}
}

func TestFetchPageSkipsMalformedChildren(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"kind":"Listing","data":{"after":"","children":[
			{"kind":"t3","data":{"name":"t3_good","title":"ok","created_utc":1700000000}},
			{"kind":"t3","data":"not an object"},
			{"kind":"t3","data":{"title":"missing name","created_utc":1700000000}}
		]}}`)
	})
	defer srv.Close()

	page, err := c.FetchPage(context.Background(), listing.Target{Kind: listing.TargetSubreddit, Name: "x"}, listing.PageParams{})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "t3_good" {
		t.Errorf("malformed children should be skipped, got %+v", page.Items)
	}
}

func TestFetchPageHTTPError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})
	defer srv.Close()

	if _, err := c.FetchPage(context.Background(), listing.Target{Kind: listing.TargetSubreddit, Name: "x"}, listing.PageParams{}); err == nil {
		t.Fatal("expected error on HTTP 429")
	}
}

func TestFetchPageUnknownKind(t *testing.T) {
	c := NewClient("http://localhost", "", time.Second, 1)
	if _, err := c.FetchPage(context.Background(), listing.Target{Kind: "bogus"}, listing.PageParams{}); err == nil {
		t.Fatal("expected error for unknown target kind")
	}
}

func TestFetchAbout(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/golang/about.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"kind":"t5","data":{"title":"Go","public_description":"The Go programming language","subscribers":123456,"over18":false}}`)
	})
	defer srv.Close()

	about, err := c.FetchAbout(context.Background(), listing.Target{Kind: listing.TargetSubreddit, Name: "golang"})
	if err != nil {
		t.Fatalf("FetchAbout: %v", err)
	}
	if about.Title != "Go" || about.Subscribers != 123456 {
		t.Errorf("about mangled: %+v", about)
	}
	if len(about.Raw) == 0 {
		t.Error("raw about payload should be kept")
	}
}

func TestFetchAboutNoEndpoint(t *testing.T) {
	c := NewClient("http://localhost", "", time.Second, 1)

	// Front page and search have no about endpoint; empty metadata, no
	// network call.
	for _, tgt := range []listing.Target{
		{Kind: listing.TargetSubreddit},
		{Kind: listing.TargetSearch, Query: "x"},
	} {
		about, err := c.FetchAbout(context.Background(), tgt)
		if err != nil {
			t.Errorf("%v: %v", tgt.Kind, err)
		}
		if about.Title != "" {
			t.Errorf("%v: expected empty about", tgt.Kind)
		}
	}
}
