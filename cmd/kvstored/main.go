// Command kvstored is the server process: it owns the Store, runs the
// job worker pool against the jobs directory, and runs the session
// acceptor/worker pool against the intake pipe. Structure — automaxprocs
// tuning, config load, signal-driven graceful shutdown — is grounded on
// the teacher's ws/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adred-codev/kvnotify/internal/backup"
	"github.com/adred-codev/kvnotify/internal/config"
	"github.com/adred-codev/kvnotify/internal/jobs"
	"github.com/adred-codev/kvnotify/internal/logging"
	"github.com/adred-codev/kvnotify/internal/notify"
	"github.com/adred-codev/kvnotify/internal/obsmetrics"
	"github.com/adred-codev/kvnotify/internal/ops"
	"github.com/adred-codev/kvnotify/internal/session"
	"github.com/adred-codev/kvnotify/internal/store"
	_ "go.uber.org/automaxprocs"
)

func main() {
	os.Exit(run())
}

func run() int {
	jobsDir := flag.String("jobs-dir", "", "directory of job files to execute (overrides KV_JOBS_DIR)")
	maxBackups := flag.Int("max-backups", 0, "max concurrent backup writers (overrides KV_MAX_BACKUPS)")
	maxJobWorkers := flag.Int("max-job-workers", 0, "number of job workers (overrides KV_MAX_JOB_WORKERS)")
	intakePath := flag.String("intake-pipe", "", "path of the session intake pipe (overrides KV_INTAKE_PIPE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvstored: config error:", err)
		return 1
	}
	if *jobsDir != "" {
		cfg.JobsDir = *jobsDir
	}
	if *maxBackups != 0 {
		cfg.MaxBackups = *maxBackups
	}
	if *maxJobWorkers != 0 {
		cfg.MaxJobWorkers = *maxJobWorkers
	}
	if *intakePath != "" {
		cfg.IntakePipePath = *intakePath
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	cfg.LogConfig(logger)

	session.IgnoreSIGPIPE(logger)

	kvStore := store.New(cfg.BucketCount, cfg.MaxKeyLen, cfg.MaxValueLen)
	registry := notify.NewRegistry()
	notifier := notify.New(registry, cfg.MaxKeyLen, cfg.MaxValueLen, logger)
	scheduler := backup.NewScheduler(cfg.MaxBackups)
	façade := ops.New(kvStore, notifier, scheduler, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: obsmetrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		metricsSrv.Shutdown(shutdownCtx)
	}()

	sampler, err := obsmetrics.NewResourceSampler(time.Duration(cfg.ResourceSampleS)*time.Second, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("resource sampler unavailable")
	} else {
		go sampler.Run(ctx)
	}

	if cfg.JobsDir != "" {
		queue, err := jobs.NewQueue(cfg.JobsDir)
		if err != nil {
			logger.Error().Err(err).Msg("job queue setup failed")
			return 1
		}
		pool := jobs.NewPool(cfg.MaxJobWorkers, queue, façade, logger)
		go pool.Run(ctx)
	}

	sessionMgr := session.NewManager(session.Config{
		IntakePath:        cfg.IntakePipePath,
		MaxSessions:       cfg.MaxSessions,
		MaxPathLen:        cfg.MaxPathLen,
		MaxKeyLen:         cfg.MaxKeyLen,
		MaxConnectsPerSec: cfg.MaxConnectsPerSec,
		ConnectBurst:      cfg.ConnectBurst,
	}, registry, façade, logger)

	if err := sessionMgr.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("session manager failed")
		return 1
	}

	logger.Info().Msg("kvstored shut down cleanly")
	return 0
}
