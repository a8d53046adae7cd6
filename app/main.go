package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/feedcomb/app/cache"
	"github.com/lysyi3m/feedcomb/app/cfg"
	"github.com/lysyi3m/feedcomb/app/client"
	"github.com/lysyi3m/feedcomb/app/feedcfg"
	"github.com/lysyi3m/feedcomb/app/layout"
	"github.com/lysyi3m/feedcomb/app/mockapi"
	"github.com/lysyi3m/feedcomb/app/rsstl"
	"github.com/lysyi3m/feedcomb/app/scheduler"
	"github.com/lysyi3m/feedcomb/app/timeline"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(appCfg.Debug)
	slog.Info("Starting FeedComb", "version", appCfg.Version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseURL := appCfg.APIBaseURL
	if baseURL == "mock" {
		mockURL, shutdown, err := startMockServer(appCfg.MockPosts, appCfg.MockRateLimit)
		if err != nil {
			slog.Error("Failed to start mock API server", "error", err)
			os.Exit(1)
		}
		defer shutdown()
		baseURL = mockURL
		slog.Info("Mock API server started", "url", baseURL, "posts", appCfg.MockPosts)
	}

	store, err := openCacheStore(appCfg)
	if err != nil {
		slog.Error("Failed to open cache store", "kind", appCfg.CacheKind, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Cache store opened", "kind", appCfg.CacheKind)

	sched := scheduler.New(scheduler.Config{
		MaxConcurrent: appCfg.MaxConcurrent,
		MinInterval:   time.Duration(appCfg.MinIntervalMs) * time.Millisecond,
		MaxRetries:    appCfg.MaxRetries,
	})
	sched.Start()
	defer sched.Stop()

	apiClient := client.New(baseURL, appCfg.APIToken, appCfg.UserAgent, 30*time.Second)

	configCache := feedcfg.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load feed configurations", "error", err)
		os.Exit(1)
	}

	feeds := configCache.GetEnabledConfigs()
	if len(feeds) == 0 {
		slog.Info("No feed configurations found, using the home timeline")
		feeds = map[string]*feedcfg.Config{
			"home": {Name: "home", Kind: "home", Settings: feedcfg.ConfigSettings{
				Enabled:  true,
				PageSize: appCfg.PageSize,
				MaxPosts: appCfg.MaxPosts,
				CacheTTL: 600,
			}},
		}
	}
	slog.Info("Feed configurations loaded", "count", len(feeds))

	for name, feedConfig := range feeds {
		if err := runFeed(ctx, appCfg, feedConfig, apiClient, sched, store); err != nil {
			if ctx.Err() != nil {
				slog.Info("Shutdown requested, stopping", "feed", name)
				return
			}
			slog.Error("Feed run failed", "feed", name, "error", err)
		}
	}

	slog.Info("All feeds processed, shutting down")
}

// runFeed walks one configured feed through a typical reading session:
// initial load, scrolling down twice, checking for newer posts and folding
// them in, then a masonry pass over the posts that carry media.
func runFeed(ctx context.Context, appCfg *cfg.Cfg, feedConfig *feedcfg.Config,
	apiClient *client.Client, sched *scheduler.Scheduler, store cache.Store) error {

	source := sourceForFeed(appCfg, feedConfig, apiClient)

	engine := timeline.NewEngine(feedConfig.FeedKey(), source, sched, store, timeline.Config{
		MaxTotalPosts: feedConfig.Settings.MaxPosts,
		PageSize:      feedConfig.Settings.PageSize,
		CacheTTL:      time.Duration(feedConfig.Settings.CacheTTL) * time.Second,
		Filter:        timeline.NewFilterer(feedConfig.FilterRules()),
	})

	if err := engine.Load(ctx); err != nil {
		return fmt.Errorf("initial load failed: %w", err)
	}
	state := engine.State()
	slog.Info("Feed loaded", "feed", feedConfig.FeedKey(), "posts", len(state.Posts), "has_more", state.HasMore)

	for i := 0; i < 2 && engine.State().HasMore; i++ {
		if err := engine.LoadMore(ctx); err != nil {
			return fmt.Errorf("load more failed: %w", err)
		}
	}
	slog.Info("Scrolled down", "feed", feedConfig.FeedKey(), "posts", len(engine.State().Posts))

	if err := engine.LoadNewer(ctx); err != nil {
		return fmt.Errorf("load newer failed: %w", err)
	}
	if pending := len(engine.State().PendingNewPosts); pending > 0 {
		engine.ApplyPendingNewPosts()
		slog.Info("Applied pending posts", "feed", feedConfig.FeedKey(), "count", pending)
	}

	state = engine.State()
	distributor := layout.NewDistributor(layout.DefaultMasonryConfig())
	mediaPosts := 0
	for _, post := range state.Posts {
		display := post.Display()
		if len(display.MediaAttachments) == 0 {
			continue
		}
		distributor.Add(post.ID, display.MediaAttachments[0].AspectRatio)
		mediaPosts++
	}

	slog.Info("Feed session complete",
		"feed", feedConfig.FeedKey(),
		"posts", len(state.Posts),
		"media_posts", mediaPosts,
		"columns", len(distributor.ColumnHeights()))

	return nil
}

func sourceForFeed(appCfg *cfg.Cfg, feedConfig *feedcfg.Config, apiClient *client.Client) timeline.Source {
	if feedConfig.Kind == "rss" {
		return rsstl.New(rsstl.Config{
			URL:            feedConfig.URL,
			UserAgent:      appCfg.UserAgent,
			Timeout:        30 * time.Second,
			ExtractContent: feedConfig.Settings.ExtractContent,
		})
	}
	return apiClient
}

func openCacheStore(appCfg *cfg.Cfg) (cache.Store, error) {
	if appCfg.CacheKind == "redis" {
		return cache.NewRedisStore(appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB, 24*time.Hour)
	}
	return cache.NewSQLiteStore(appCfg.CachePath)
}

func startMockServer(posts, rateLimitEvery int) (string, func(), error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen: %w", err)
	}

	handler := mockapi.NewHandler(mockapi.NewStore(posts), rateLimitEvery)
	server := &http.Server{Handler: mockapi.NewServer(handler)}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("Mock API server error", "error", err)
		}
	}()

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Mock API server shutdown error", "error", err)
		}
	}

	return "http://" + listener.Addr().String(), shutdown, nil
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
