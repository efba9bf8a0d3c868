package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeffrigby/reacddit-sub000/internal/config"
	"github.com/jeffrigby/reacddit-sub000/internal/fetch"
	"github.com/jeffrigby/reacddit-sub000/internal/history"
	"github.com/jeffrigby/reacddit-sub000/internal/listing"
	"github.com/jeffrigby/reacddit-sub000/internal/logging"
	"github.com/jeffrigby/reacddit-sub000/internal/monitor"
	"github.com/jeffrigby/reacddit-sub000/internal/store"
	"github.com/jeffrigby/reacddit-sub000/internal/ui"
)

func main() {
	subreddit := flag.String("r", "", "subreddit to browse (empty for front page)")
	sort := flag.String("sort", "hot", "listing sort: hot, new, top, rising")
	search := flag.String("search", "", "search query instead of a subreddit listing")
	timeframe := flag.String("t", "", "time range for time-ranged sorts: hour, day, week, month, year, all")
	flag.Parse()

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := logging.Init(); err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Data directory: ~/.reacddit/
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}
	dataDir := filepath.Join(homeDir, ".reacddit")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Open post archive
	st, err := store.Open(filepath.Join(dataDir, "reacddit.db"))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	// Content provider
	client := fetch.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.UserAgent,
		time.Duration(cfg.Provider.TimeoutSeconds)*time.Second,
		cfg.Provider.RequestsPerSecond,
	)

	target, nav := buildTarget(*subreddit, *sort, *search, *timeframe)

	// Geometry bridge doubles as the router: it knows the current context.
	geo := ui.NewGeometry()

	mgr := listing.NewManager(client, geo, cfg)
	mgr.SetArchiver(st)

	hist := history.NewStore()
	mon := monitor.New(geo, hist, mgr, geo, cfg)
	mon.SetRestorer(geo)
	mon.SetInterval(time.Duration(cfg.Feed.ScanIntervalMs) * time.Millisecond)

	// Pagination completion drives the post-fetch re-scans.
	mgr.OnPagination(func(nav string) {
		mon.ScheduleRescans(ctx)
	})

	mon.Start(ctx)

	poller := monitor.NewPoller(mgr, mon, cfg, geo, geo.ScrollY)
	poller.SetInterval(time.Duration(cfg.Feed.StreamIntervalSeconds) * time.Second)
	poller.Start(ctx)

	app := ui.NewApp(ctx, mgr, mon, geo, st, target, nav, cfg.Condensed())
	program := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		cancel()
		logging.Error("program exited with error", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cancel()
}

// buildTarget maps the CLI flags to a listing target and navigation context.
func buildTarget(subreddit, sort, search, timeframe string) (listing.Target, string) {
	if search != "" {
		t := listing.Target{
			Kind:      listing.TargetSearch,
			Name:      subreddit,
			Sort:      "relevance",
			Query:     search,
			Timeframe: timeframe,
		}
		return t, "search/" + search
	}

	t := listing.Target{
		Kind:      listing.TargetSubreddit,
		Name:      subreddit,
		Sort:      sort,
		Timeframe: timeframe,
	}
	nav := listing.DefaultContext
	if subreddit != "" {
		nav = "r/" + subreddit + "/" + sort
	}
	return t, nav
}
