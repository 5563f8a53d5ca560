package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/webshop-tools/go-product-feed/config"
	"github.com/webshop-tools/go-product-feed/crawler"
	"github.com/webshop-tools/go-product-feed/feed"
	"github.com/webshop-tools/go-product-feed/selectors"
	"github.com/webshop-tools/go-product-feed/sitemap"
	"github.com/webshop-tools/go-product-feed/uploader"
)

func main() {
	defaultCfg := config.DefaultConfig()
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("CRAWLER_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid CRAWLER_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("CRAWLER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("CRAWLER_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	verifySSLDefault := defaultCfg.VerifySSL
	if value, ok, err := config.EnvBool("CRAWLER_VERIFY_SSL"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid CRAWLER_VERIFY_SSL: %v\n", err)
		os.Exit(1)
	} else if ok {
		verifySSLDefault = value
	}

	startURL := flag.String("url", "", "Start URL to crawl")
	maxPages := flag.Int("pages", pagesDefault, "Maximum listing pages to crawl")
	delayMs := flag.Int("delay", int(defaultCfg.RequestDelay/time.Millisecond), "Delay between page fetches (milliseconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per URL")
	verifySSL := flag.Bool("verify-ssl", verifySSLDefault, "Verify TLS certificates")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: json, csv, or dual")
	overridesFile := flag.String("overrides", "", "Per-domain selector overrides file")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	treeOnly := flag.Bool("tree", false, "Map the category tree instead of crawling products")
	treeDepth := flag.Int("tree-depth", defaultCfg.MaxDepth, "Maximum category tree depth")
	treeOutput := flag.String("tree-output", "", "Write the category tree as JSON to this path")

	storeURL := flag.String("store-url", "", "WooCommerce store URL; when set, products are uploaded after the crawl")
	storeUser := flag.String("store-user", "", "Store username")
	storePassword := flag.String("store-password", "", "Store application password")
	categoryID := flag.Int("category-id", defaultCfg.DefaultCategoryID, "Store category ID for uploaded products")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.StartURL = *startURL
	cfg.MaxPages = *maxPages
	cfg.MaxDepth = *treeDepth
	cfg.RequestDelay = time.Duration(*delayMs) * time.Millisecond
	cfg.MaxRetries = *maxRetries
	cfg.VerifySSL = *verifySSL
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.OverridesFile = *overridesFile
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current page")
	}()

	if *treeOnly {
		if err := runTree(ctx, cfg, *treeOutput); err != nil {
			slog.Error("category mapping failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := runCrawl(ctx, cfg, *storeURL, *storeUser, *storePassword, *categoryID); err != nil {
		slog.Error("crawl failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func runTree(ctx context.Context, cfg *config.Config, outputPath string) error {
	slog.Info("mapping category tree",
		slog.String("url", cfg.StartURL),
		slog.Int("max_depth", cfg.MaxDepth),
		slog.Int("max_urls", cfg.MaxCategoryURLs),
	)

	builder, err := sitemap.NewBuilder(cfg)
	if err != nil {
		return err
	}
	tree, err := builder.Build(ctx, cfg.StartURL)
	if err != nil {
		return err
	}

	fmt.Print(sitemap.Render(tree))
	if outputPath != "" {
		if err := sitemap.Export(tree, outputPath); err != nil {
			return err
		}
		slog.Info("category tree written", slog.String("path", outputPath))
	}
	return nil
}

func runCrawl(ctx context.Context, cfg *config.Config, storeURL, storeUser, storePassword string, categoryID int) error {
	store := selectors.NewStore("")
	if cfg.OverridesFile != "" {
		loaded, err := selectors.Load(cfg.OverridesFile)
		if err != nil {
			return fmt.Errorf("load selector overrides: %w", err)
		}
		store = loaded
	}

	metrics := crawler.NewMetrics()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	session, err := crawler.NewSession(cfg, store,
		crawler.WithMetrics(metrics),
		crawler.WithEvents(crawler.SinkFunc(logProgress)),
	)
	if err != nil {
		return err
	}

	slog.Info("starting crawl",
		slog.String("url", cfg.StartURL),
		slog.Int("pages", cfg.MaxPages),
	)

	products, stats, err := session.Run(ctx, cfg.StartURL)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if err := feed.Export(products, cfg.OutputFile, cfg.OutputFormat); err != nil {
		return err
	}
	slog.Info("feed written",
		slog.String("path", cfg.OutputFile),
		slog.Int("products", len(products)),
	)

	fmt.Print(stats.Summary())

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if storeURL == "" {
		return nil
	}

	client, err := uploader.NewClient(cfg, storeURL, storeUser, storePassword)
	if err != nil {
		return err
	}
	slog.Info("uploading products",
		slog.String("store", storeURL),
		slog.Int("count", len(products)),
		slog.Int("category_id", categoryID),
	)
	result, err := client.UploadAll(context.Background(), products, categoryID)
	if err != nil {
		return err
	}
	fmt.Printf("\nUpload complete: %d uploaded, %d failed\n", result.Uploaded, result.Failed)
	return nil
}

func logProgress(e crawler.Event) {
	if e.URL == "" {
		slog.Info(e.Message, slog.Int("current", e.Current), slog.Int("total", e.Total))
		return
	}
	slog.Info(e.Message,
		slog.String("url", e.URL),
		slog.Int("current", e.Current),
		slog.Int("total", e.Total),
	)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
