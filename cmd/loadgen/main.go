package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/okian/proofkit/internal/loadgen"
	"github.com/okian/proofkit/pkg/logger"
)

// Default configuration constants.
const (
	defaultArtifacts   = 10
	defaultActors      = 50
	defaultEvents      = 20
	defaultDupEvery    = 25
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultSettle      = 2 * time.Minute
	defaultRetries     = 5
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		items     = flag.String("items", "", "Comma separated catalog item ids composed into each artifact")
		artifacts = flag.Int("artifacts", defaultArtifacts, "Number of artifacts to compose")
		actors    = flag.Int("actors", defaultActors, "Distinct actors per artifact")
		events    = flag.Int("events", defaultEvents, "Events per actor per artifact")
		dupEvery  = flag.Int("dup-every", defaultDupEvery, "Resubmit every Nth event id (0 disables)")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle    = flag.Duration("settle", defaultSettle, "How long to wait for the ledger to catch up")
		retries   = flag.Int("retries", defaultRetries, "Retries for events refused with 429")
		format    = flag.String("log-format", logger.FormatText, "Log format: text or json")
	)
	flag.Parse()

	if *items == "" {
		os.Stderr.WriteString("loadgen: -items is required\n")
		flag.Usage()
		os.Exit(2)
	}
	if err := logger.InitWithWriter(os.Stdout, *format); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err := loadgen.Run(ctx, loadgen.Config{
		BaseURL:        strings.TrimRight(*baseURL, "/"),
		ItemIDs:        strings.Split(*items, ","),
		Artifacts:      *artifacts,
		Actors:         *actors,
		EventsPerActor: *events,
		DuplicateEvery: *dupEvery,
		Workers:        *workers,
		Timeout:        *timeout,
		SettleTimeout:  *settle,
		MaxRetries:     *retries,
	})
	if err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		stop()
		cancel()
		os.Exit(1)
	}
}
