package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/paperjet/paperjet"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if flags.version {
		fmt.Println("paperjet", Version)
		return 0
	}

	warnUnknownEnvVars(os.Stderr)

	cfg, err := resolveConfig(flags, loadEnvConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log, err := newLogger(cfg.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues.
	_, _ = maxprocs.Set(maxprocs.Logger(log.Sugar().Debugf))

	if cfg.EngineURL == "" {
		url, err := launchLocalBrowser()
		if err != nil {
			log.Error("launching local browser", zap.Error(err))
			return 1
		}
		log.Info("launched local browser", zap.String("controlUrl", url))
		cfg.EngineURL = url
	}

	ctx, stop := notifyContext(context.Background())
	defer stop()

	return serve(ctx, cfg, log)
}

func serve(ctx context.Context, cfg *serverConfig, log *zap.Logger) int {
	mgr := paperjet.NewManager(cfg.EngineURL, managerOptions(cfg, log)...)
	defer func() { _ = mgr.Close() }()

	// Warm the pool up front so a bad engine address is visible at startup.
	// Failure is not fatal here: the first capture retriggers initialization.
	if err := mgr.Initialize(ctx); err != nil {
		log.Warn("initial pool warmup failed, will retry on first request", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newServer(mgr, log).routes(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	code := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-mgr.Fatal():
		// Reconnection attempts exhausted; nothing left to recover.
		log.Error("engine connection unrecoverable", zap.Error(err))
		code = 1
	case err := <-errCh:
		log.Error("http server failed", zap.Error(err))
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	return code
}

// managerOptions maps resolved config onto paperjet options, leaving library
// defaults in place for unset values.
func managerOptions(cfg *serverConfig, log *zap.Logger) []paperjet.Option {
	opts := []paperjet.Option{paperjet.WithLogger(log)}

	if cfg.PoolSize > 0 {
		opts = append(opts, paperjet.WithPoolSize(cfg.PoolSize))
	}
	if d := durationOrZero(cfg.AcquireTimeoutMs); d > 0 {
		opts = append(opts, paperjet.WithAcquireTimeout(d))
	}
	if d := durationOrZero(cfg.NavigateTimeoutMs); d > 0 {
		opts = append(opts, paperjet.WithNavigateTimeout(d))
	}
	if d := durationOrZero(cfg.HealthIntervalMs); d > 0 {
		opts = append(opts, paperjet.WithHealthCheckInterval(d))
	}
	if cfg.ReconnectAttempts > 0 {
		opts = append(opts, paperjet.WithReconnectAttempts(cfg.ReconnectAttempts))
	}
	if d := durationOrZero(cfg.ReconnectBackoffMs); d > 0 {
		opts = append(opts, paperjet.WithReconnectBackoff(d))
	}
	if cfg.CaptureAttempts > 0 {
		opts = append(opts, paperjet.WithCaptureAttempts(cfg.CaptureAttempts))
	}
	return opts
}

// launchLocalBrowser starts a browser on this machine and returns its
// control URL. Opt-in fallback for development; production points at a
// remote engine.
func launchLocalBrowser() (string, error) {
	l := launcher.New()

	// Use a pre-installed browser if specified (Docker/containerized
	// environments); NoSandbox is required there and in CI.
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}

	return l.Launch()
}

// newLogger builds the process logger: human-readable in verbose mode,
// JSON production encoding otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
