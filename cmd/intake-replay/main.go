// Command intake-replay runs a recorded batch of intake actions through the
// resolution pipeline and prints the execution report as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"mortgageintake/internal/archive"
	"mortgageintake/internal/config"
	"mortgageintake/internal/core"
	"mortgageintake/internal/infra/persistence/memory"
	"mortgageintake/internal/intake"
	"mortgageintake/internal/places"
	"mortgageintake/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	code := cli(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("intake-replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath, batchPath, statePath string
	fs.StringVar(&configPath, "config", "", "path to YAML configuration (optional)")
	fs.StringVar(&batchPath, "batch", "-", "path to the action batch JSON, - for stdin")
	fs.StringVar(&statePath, "state", "", "path to a JSON store snapshot seeding the application state")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}
	logger := cfg.NewLogger(stderr)

	report, err := run(ctx, cfg, logger, batchPath, statePath, stdin, stderr)
	if report != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			_, _ = fmt.Fprintf(stderr, "write report: %v\n", encErr)
			return 1
		}
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "intake-replay: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, batchPath, statePath string, stdin io.Reader, diag io.Writer) (*domain.ExecutionReport, error) {
	actions, err := readBatch(batchPath, stdin)
	if err != nil {
		return nil, err
	}
	store, err := core.OpenStore(ctx, core.StorageConfig{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}
	if statePath != "" {
		if err := seedState(store, statePath); err != nil {
			return nil, err
		}
	}

	resolver, cleanup, err := buildResolver(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithPipelineOptions(
			core.WithAddressResolver(resolver),
			core.WithResolveConcurrency(cfg.Places.Concurrency),
		),
	}
	obsOpts, shutdown, err := observability(cfg, diag)
	if err != nil {
		return nil, err
	}
	defer shutdown(ctx)
	opts = append(opts, obsOpts...)

	arch, err := archive.Open(ctx, archive.Config{
		Driver: archive.Driver(cfg.Archive.Driver),
		FSRoot: cfg.Archive.FSRoot,
		S3: archive.S3Config{
			Bucket:    cfg.Archive.S3Bucket,
			Region:    cfg.Archive.S3Region,
			Endpoint:  cfg.Archive.S3Endpoint,
			PathStyle: cfg.Archive.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if arch != nil {
		opts = append(opts, core.WithArchive(arch))
	}

	svc := core.NewService(store, opts...)
	report, err := svc.Process(ctx, actions)
	if err != nil && domain.IsProgrammerError(err) {
		return nil, err
	}
	return &report, err
}

func readBatch(path string, stdin io.Reader) ([]domain.Action, error) {
	if path == "" || path == "-" {
		return intake.DecodeReader(stdin)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	return intake.Decode(data)
}

type stateImporter interface {
	ImportState(memory.Snapshot)
}

func seedState(store core.PersistentStore, path string) error {
	importer, ok := store.(stateImporter)
	if !ok {
		return fmt.Errorf("store %T cannot be seeded", store)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	var snapshot memory.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	importer.ImportState(snapshot)
	return nil
}

func buildResolver(cfg config.Config, logger *slog.Logger) (core.AddressResolver, func(), error) {
	lookupOpts := []places.HTTPOption{places.WithRateLimit(cfg.Places.Rate, cfg.Places.Burst)}
	if cfg.Places.BaseURL != "" {
		lookupOpts = append(lookupOpts, places.WithBaseURL(cfg.Places.BaseURL))
	}
	resolverOpts := []places.ResolverOption{
		places.WithLogger(logger),
		places.WithTimeout(cfg.Places.Timeout),
	}
	cleanup := func() {}
	switch cfg.Cache.Driver {
	case "memory":
		c, err := places.NewMemoryCache(cfg.Cache.Size)
		if err != nil {
			return nil, nil, fmt.Errorf("address cache: %w", err)
		}
		resolverOpts = append(resolverOpts, places.WithCache(c))
	case "redis":
		c := places.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.Password, cfg.Cache.DB, cfg.Cache.TTL)
		resolverOpts = append(resolverOpts, places.WithCache(c))
		cleanup = func() { _ = c.Close() }
	}
	lookup := places.NewHTTPClient(cfg.Places.APIKey, lookupOpts...)
	return places.NewResolver(lookup, resolverOpts...), cleanup, nil
}

// observability builds the metrics and tracing options. Diagnostics go to
// diag: JSON traces as they happen, and the Prometheus exposition once the
// batch is done.
func observability(cfg config.Config, diag io.Writer) ([]core.Option, func(context.Context), error) {
	var opts []core.Option
	var flush []func(context.Context)
	switch cfg.Observability.Metrics {
	case "expvar":
		opts = append(opts, core.WithMetrics(core.NewExpvarMetricsRecorder("")))
	case "prometheus":
		reg := prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return nil, nil, fmt.Errorf("prometheus metrics: %w", err)
		}
		opts = append(opts, core.WithMetrics(rec))
		flush = append(flush, func(context.Context) {
			if err := writeMetrics(diag, reg); err != nil {
				_, _ = fmt.Fprintf(diag, "write metrics: %v\n", err)
			}
		})
	}
	switch cfg.Observability.Tracing {
	case "json":
		opts = append(opts, core.WithTracer(core.NewJSONTracer(diag)))
	case "otel":
		tp := sdktrace.NewTracerProvider()
		opts = append(opts, core.WithTracer(core.NewOTelTracer(tp.Tracer("mortgageintake/cmd/intake-replay"))))
		flush = append(flush, func(ctx context.Context) {
			if err := tp.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
				_, _ = fmt.Fprintf(diag, "shutdown tracer: %v\n", err)
			}
		})
	}
	shutdown := func(ctx context.Context) {
		for _, fn := range flush {
			fn(ctx)
		}
	}
	return opts, shutdown, nil
}

// writeMetrics dumps the registry in the Prometheus text format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
