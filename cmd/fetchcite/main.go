// Command fetchcite is a thin demonstration entrypoint wiring the core
// packages together: it is not the CLI front-end described as out of
// scope for the core, just enough glue to drive one process_queue run
// from a list of inputs.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fetchcite/fetchcite/internal/bandwidth"
	"github.com/fetchcite/fetchcite/internal/config"
	"github.com/fetchcite/fetchcite/internal/controlapi"
	"github.com/fetchcite/fetchcite/internal/engine"
	"github.com/fetchcite/fetchcite/internal/history"
	"github.com/fetchcite/fetchcite/internal/httpclient"
	"github.com/fetchcite/fetchcite/internal/inputparse"
	"github.com/fetchcite/fetchcite/internal/lifecycle"
	"github.com/fetchcite/fetchcite/internal/logging"
	"github.com/fetchcite/fetchcite/internal/metrics"
	"github.com/fetchcite/fetchcite/internal/queue"
	"github.com/fetchcite/fetchcite/internal/ratelimit"
	"github.com/fetchcite/fetchcite/internal/resolver"
	"github.com/fetchcite/fetchcite/internal/retrypolicy"
	"github.com/fetchcite/fetchcite/internal/storage"
	"github.com/fetchcite/fetchcite/internal/watchdog"
)

const maxResolverBodyBytes = 1 << 20

func main() {
	os.Exit(run(os.Args[1:], os.Stdin))
}

func run(args []string, stdin io.Reader) int {
	fs := flag.NewFlagSet("fetchcite", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to an optional YAML config overlay")
	outputDir := fs.String("output-dir", "", "directory downloads are written to (default: current directory)")
	controlPort := fs.Int("control-port", 0, "if non-zero, serve the read-only control API on 127.0.0.1:<port>")
	watchdogSpec := fs.String("watchdog-cron", "", "if set, run a periodic in_progress reclaim sweep on this cron schedule")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetchcite: load config:", err)
		return 1
	}
	if *outputDir != "" {
		if cfg.StoreDir == filepath.Join(cfg.OutputDir, ".store") {
			cfg.StoreDir = filepath.Join(*outputDir, ".store")
		}
		cfg.OutputDir = *outputDir
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "fetchcite: create output dir:", err)
		return 1
	}

	logger, err := logging.New(cfg.StoreDir, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetchcite: init logging:", err)
		return 1
	}

	store, err := storage.Open(cfg.StoreDir)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		return 1
	}
	defer store.Close()

	q := queue.New(store)
	hist := history.New(store)

	enqueued, skipped := enqueueInputs(stdin, q, buildRegistry(), cfg, logger)
	logger.Info("input parsing complete", "enqueued", enqueued, "skipped", skipped)

	limiter := ratelimit.New(time.Duration(cfg.RateLimitMS)*time.Millisecond, logger)
	client := httpclient.New(httpclient.Options{
		ConnectTimeout:  time.Duration(cfg.ConnectTimeout) * time.Second,
		ReadTimeout:     time.Duration(cfg.ReadTimeout) * time.Second,
		UserAgent:       cfg.UserAgent,
		WithCookieJar:   true,
		FollowRedirects: true,
	})
	rp := retrypolicy.New(cfg.MaxRetries, time.Second, 32*time.Second, 2.0)
	eng := engine.New(cfg.Concurrency, rp, limiter, client, cfg.UserAgent, logger)
	eng.Bandwidth = bandwidth.New(cfg.BandwidthLimit)

	registry := prometheus.NewRegistry()
	eng.Metrics = metrics.NewCollector(registry)

	if *watchdogSpec != "" {
		wd := watchdog.New(q, logger)
		if err := wd.Start(*watchdogSpec); err != nil {
			logger.Warn("failed to start watchdog", "error", err)
		} else {
			defer wd.Stop()
		}
	}

	var lastStats atomic.Value
	lastStats.Store(engine.DownloadStats{})
	if *controlPort != 0 {
		srv := controlapi.New(q, func() engine.DownloadStats { return lastStats.Load().(engine.DownloadStats) }, cfg.OutputDir, logger, registry)
		go func() {
			if err := srv.ListenAndServe(*controlPort); err != nil {
				logger.Warn("control API stopped", "error", err)
			}
		}()
	}

	lifecycle.WaitForSignals(func() {
		logger.Warn("shutdown signal received, draining in-flight downloads")
		eng.Interrupt.Store(true)
	})

	stats, err := eng.ProcessQueue(context.Background(), q, hist, cfg.OutputDir)
	if err != nil {
		logger.Error("process_queue failed", "error", err)
		return 1
	}
	lastStats.Store(stats)

	if stats.Failed == 0 {
		return 0
	}
	return 1
}

// enqueueInputs reads newline-delimited candidate inputs from r,
// classifies and resolves each, and enqueues the ones that resolve.
// This stands in for the CLI front-end's input-gathering, which is out
// of the core's scope.
func enqueueInputs(r io.Reader, q *queue.Queue, reg *resolver.Registry, cfg config.Config, logger *slog.Logger) (enqueued, skipped int) {
	rctx := resolver.Context{Fetch: resolverFetch(cfg.UserAgent)}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		raw := scanner.Text()
		inputType, err := inputparse.Classify(raw)
		if err != nil {
			skipped++
			continue
		}

		resolved, err := reg.ResolveToURL(context.Background(), raw, resolver.InputType(inputType), rctx)
		if err != nil {
			logger.Warn("resolution failed, skipping input", "input", raw, "error", err)
			skipped++
			continue
		}

		if _, err := q.Enqueue(resolved.URL, inputType.String(), raw, queue.Metadata{
			Title:   resolved.Title,
			Authors: resolved.Authors,
			Year:    resolved.Year,
			DOI:     resolved.DOI,
		}); err != nil {
			logger.Warn("enqueue failed", "input", raw, "error", err)
			skipped++
			continue
		}
		enqueued++
	}
	return enqueued, skipped
}

func buildRegistry() *resolver.Registry {
	reg := resolver.NewRegistry()
	reg.Register(&resolver.DOIResolver{})
	reg.Register(resolver.NewSiteLoginAwareResolver())
	reg.Register(&resolver.DirectResolver{})
	return reg
}

func resolverFetch(userAgent string) func(ctx context.Context, url string) (int, string, []byte, error) {
	client := httpclient.New(httpclient.Options{ConnectTimeout: 30 * time.Second, ReadTimeout: 30 * time.Second, UserAgent: userAgent})
	return func(ctx context.Context, url string) (int, string, []byte, error) {
		req, err := httpclient.NewRequest(http.MethodGet, url, userAgent)
		if err != nil {
			return 0, "", nil, err
		}
		req = req.WithContext(ctx)
		resp, err := client.Do(req)
		if err != nil {
			return 0, "", nil, err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResolverBodyBytes))
		return resp.StatusCode, resp.Header.Get("Location"), body, nil
	}
}
