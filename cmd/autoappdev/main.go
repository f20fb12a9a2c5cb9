// Command autoappdev is the AutoAppDev control-plane process: it loads
// environment-driven configuration, constructs the dual-backed state
// store, wires the pipeline controller, log tailer, and outbox
// emitter/ingester background loops, and serves the HTTP API until a
// termination signal arrives. Grounded on the teacher's cmd/tarsy/main.go
// flag+env+godotenv pattern and pkg/queue/pool.go's stopCh+sync.Once+
// WaitGroup graceful-shutdown shape.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/autoappdev/pkg/api"
	"github.com/codeready-toolchain/autoappdev/pkg/config"
	"github.com/codeready-toolchain/autoappdev/pkg/logtail"
	"github.com/codeready-toolchain/autoappdev/pkg/outbox"
	"github.com/codeready-toolchain/autoappdev/pkg/pipeline"
	"github.com/codeready-toolchain/autoappdev/pkg/store"
	"github.com/codeready-toolchain/autoappdev/pkg/version"
)

// Process exit codes (spec §6).
const (
	exitOK            = 0
	exitMissingEnv    = 2
	exitSchemaFailure = 3
	exitTimeout       = 4
	exitOtherFailure  = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	repoRoot := flag.String("repo-root", getEnv("AUTOAPPDEV_REPO_ROOT", "."), "Path to the repo root script/cwd containment is enforced against")
	flag.Parse()

	absRepoRoot, err := filepath.Abs(*repoRoot)
	if err != nil {
		slog.Error("resolve repo root", "error", err)
		return exitOtherFailure
	}

	if err := godotenv.Load(filepath.Join(absRepoRoot, ".env")); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load configuration", "error", err)
		return exitMissingEnv
	}

	if err := os.MkdirAll(cfg.RuntimeDir, 0o755); err != nil {
		slog.Error("create runtime dir", "error", err)
		return exitOtherFailure
	}
	if err := os.MkdirAll(filepath.Join(cfg.RuntimeDir, "logs"), 0o755); err != nil {
		slog.Error("create logs dir", "error", err)
		return exitOtherFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("open state store", "error", err)
		return exitSchemaFailure
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("close store", "error", err)
		}
	}()

	controller := pipeline.NewController(st, cfg.RuntimeDir, absRepoRoot)
	controller.Launch(ctx)
	defer controller.Shutdown()

	ring := logtail.NewRing(logtail.DefaultCapacity)
	tailer := logtail.NewService(ring)
	tailer.AddSource("pipeline", filepath.Join(cfg.RuntimeDir, "logs", "pipeline.log"))
	tailer.AddSource("backend", filepath.Join(cfg.RuntimeDir, "logs", "backend.log"))
	tailer.Launch(ctx)
	defer tailer.Shutdown()

	emitter, err := outbox.NewEmitter(cfg.RuntimeDir)
	if err != nil {
		slog.Error("create inbox emitter", "error", err)
		return exitOtherFailure
	}

	ingester, err := outbox.NewIngester(st, cfg.RuntimeDir)
	if err != nil {
		slog.Error("create outbox ingester", "error", err)
		return exitOtherFailure
	}
	ingester.Launch(ctx)
	defer ingester.Shutdown()

	server := api.NewServer(cfg, st, controller, tailer, emitter, ingester, absRepoRoot)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Addr(), "version", version.Full())
		if err := server.Start(cfg.Addr()); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		slog.Error("http server exited", "error", err)
		return exitOtherFailure
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown", "error", err)
		return exitOtherFailure
	}

	return exitOK
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		return store.NewFile(cfg.RuntimeDir), nil
	}
	return store.NewSQL(ctx, cfg.DatabaseURL)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
