package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/miekg/dns"
	"github.com/poyrazK/zonewriter/internal/adapters/api"
	"github.com/poyrazK/zonewriter/internal/adapters/kube"
	"github.com/poyrazK/zonewriter/internal/adapters/redisbus"
	"github.com/poyrazK/zonewriter/internal/adapters/repository"
	"github.com/poyrazK/zonewriter/internal/adapters/zonefs"
	"github.com/poyrazK/zonewriter/internal/config"
	"github.com/poyrazK/zonewriter/internal/core/ports"
	"github.com/poyrazK/zonewriter/internal/core/services"
	"github.com/poyrazK/zonewriter/internal/infrastructure/metrics"
	"gopkg.in/natefinch/lumberjack.v2"
)

const usage = `usage: zonewriter <command> [flags]

commands:
  run     reconcile zone files until SIGINT or SIGTERM (default)
  once    run a single reconciliation pass and exit
  check   parse every zone file in the zone directory and compare with the snapshot
`

// newSource builds the tenant source; tests replace it.
var newSource = buildSource

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, lookupEnv func(string) (string, bool), stdout, stderr io.Writer) int {
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "run", "once", "check":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	cfg, err := config.Load(lookupEnv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if cmd == "check" {
		if cfg.ZonesDir == "" {
			fmt.Fprintln(stderr, "ZONES_DIR is required")
			return 1
		}
		if err := checkZones(cfg.ZonesDir, stdout); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	logger, closeLog, err := newLogger(cfg, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer closeLog()

	store := zonefs.NewStore(cfg.ZonesDir, logger)
	if err := store.Prepare(); err != nil {
		logger.Error("zone directory unusable", "dir", cfg.ZonesDir, "error", err)
		return 1
	}

	source, closeSource, err := newSource(cfg, logger)
	if err != nil {
		logger.Error("failed to set up tenant source", "source", cfg.Source, "error", err)
		return 1
	}
	defer closeSource()

	rec := services.NewReconciler(source, store, services.NewZoneRenderer(cfg.ServiceNameTemplate()), logger)
	rec.Interval = cfg.PollInterval
	rec.RenderWorkers = cfg.RenderWorkers
	rec.Metrics = metrics.NewRecorder()

	if cfg.RedisAddr != "" {
		bus := redisbus.NewBus(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger).
			WithChannels(cfg.TriggerChannel, cfg.NotifyChannel)
		defer func() {
			if errClose := bus.Close(); errClose != nil {
				logger.Warn("failed to close redis client", "error", errClose)
			}
		}()
		rec.Notifier = bus
		if cmd == "run" {
			rec.Trigger = bus
		}
	}

	if cmd == "once" {
		res, err := rec.RunOnce(ctx)
		if err != nil {
			logger.Error("reconciliation pass failed", "error", err)
			return 1
		}
		logger.Info("pass complete", "changed", res.Changed, "apexes", res.Apexes, "records", res.Records, "removed", len(res.Removed))
		return 0
	}

	srv := startOpsServer(cfg.HTTPAddr, rec, logger)

	if err := rec.Start(ctx); err != nil {
		logger.Error("reconciler stopped", "error", err)
		return 1
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops server shutdown", "error", err)
		}
	}
	return 0
}

// newLogger writes JSON logs to stdout and, when LOG_FILE is set, to a
// rotated file as well.
func newLogger(cfg *config.Config, stdout io.Writer) (*slog.Logger, func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	out := stdout
	closeFn := func() {}
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		}
		out = io.MultiWriter(stdout, rotator)
		closeFn = func() { _ = rotator.Close() }
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), closeFn, nil
}

func buildSource(cfg *config.Config, logger *slog.Logger) (ports.TenantSource, func(), error) {
	switch cfg.Source {
	case config.SourceKube:
		client, err := kube.NewDynamicClient(cfg.Kubeconfig)
		if err != nil {
			return nil, nil, err
		}
		return kube.NewTenantSource(client, cfg.KubeNamespace, logger), func() {}, nil
	default:
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		// Unreachable at startup is not fatal; passes report it and retry.
		if err := db.Ping(); err != nil {
			logger.Warn("could not ping database", "error", err)
		}
		closeFn := func() {
			if errClose := db.Close(); errClose != nil {
				logger.Warn("failed to close database", "error", errClose)
			}
		}
		return repository.NewPostgresTenantSource(db), closeFn, nil
	}
}

func startOpsServer(addr string, health api.HealthChecker, logger *slog.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	api.NewAPIHandler(health).RegisterRoutes(mux)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", "error", err)
		}
	}()
	return srv
}

// checkZones parses every <apex>.db in dir as a master file and verifies the
// set of files matches the apexes recorded in the snapshot.
func checkZones(dir string, stdout io.Writer) error {
	store := zonefs.NewStore(dir, nil)
	files, err := filepath.Glob(filepath.Join(store.Dir(), "*.db"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	var problems []string
	onDisk := make(map[string]bool, len(files))
	for _, path := range files {
		apex := strings.TrimSuffix(filepath.Base(path), ".db")
		onDisk[apex] = true
		n, err := checkZoneFile(path, apex)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		fmt.Fprintf(stdout, "ok %s (%d records)\n", filepath.Base(path), n)
	}

	data, err := store.LoadSnapshot()
	if err != nil {
		problems = append(problems, err.Error())
	} else if data != nil {
		var snapshot map[string]map[string]string
		if err := json.Unmarshal(data, &snapshot); err != nil {
			problems = append(problems, fmt.Sprintf("snapshot %s: %v", store.SnapshotPath(), err))
		}
		for apex := range snapshot {
			if !onDisk[apex] {
				problems = append(problems, fmt.Sprintf("apex %s is in the snapshot but has no zone file", apex))
			}
		}
		for apex := range onDisk {
			if _, ok := snapshot[apex]; !ok {
				problems = append(problems, fmt.Sprintf("zone file %s.db is not in the snapshot", apex))
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("zone check failed:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

func checkZoneFile(path, apex string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	zp := dns.NewZoneParser(f, dns.Fqdn(apex), path)
	count := 0
	hasSOA := false
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		count++
		if _, isSOA := rr.(*dns.SOA); isSOA {
			hasSOA = true
		}
	}
	if err := zp.Err(); err != nil {
		return count, fmt.Errorf("%s: %w", path, err)
	}
	if !hasSOA {
		return count, fmt.Errorf("%s: missing SOA record", path)
	}
	return count, nil
}
