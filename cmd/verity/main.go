// Command verity is the pipeline CLI: discovery, scheduling, governance,
// materialization, validation, and compliance checking over a SQL project
// directory. Subcommand dispatch follows the teacher's flag.NewFlagSet +
// switch idiom (cmd/slctl/main.go) rather than a third-party CLI framework.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/axel-mauroy/verity-governance-as-code/domain/lineage"
	"github.com/axel-mauroy/verity-governance-as-code/domain/quoter"
	"github.com/axel-mauroy/verity-governance-as-code/domain/template"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/adapters/gms"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/adapters/postgres"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/catalog"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/config"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/discovery"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/fs"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/logging"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/metrics"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/schemastore"
	"github.com/axel-mauroy/verity-governance-as-code/ports"
	"github.com/axel-mauroy/verity-governance-as-code/pkg/version"

	"github.com/axel-mauroy/verity-governance-as-code/application/orchestrator"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("no command specified")
	}

	switch args[0] {
	case "run":
		return cmdRun(ctx, args[1:])
	case "clean":
		return cmdClean(ctx, args[1:])
	case "sources":
		return cmdSources(ctx, args[1:])
	case "docs":
		return cmdDocs(ctx, args[1:])
	case "lineage":
		return cmdLineage(ctx, args[1:])
	case "inspect":
		return cmdInspect(ctx, args[1:])
	case "version":
		fmt.Println(version.FullVersion())
		return nil
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	fmt.Println(`verity - governance-as-code SQL pipeline

Usage:
  verity <command> [flags]

Commands:
  run       execute the pipeline
  clean     delete configured clean targets
  sources   manage the source registry (sources generate)
  docs      regenerate the catalog
  lineage   run the lineage analyzer
  inspect   diagnostic read of a materialized table
  version   print build information`)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func resolveProjectDir(d string) (string, error) {
	if d == "" {
		d = "."
	}
	abs, err := filepath.Abs(d)
	if err != nil {
		return "", err
	}
	return abs, nil
}

// buildOrchestrator wires every port implementation for projectDir
// (§4.10, §6): discovery loader, schema store, the engine chosen by the
// project's `engine` field, template rendering, structured logging, and
// Prometheus metrics.
func buildOrchestrator(ctx context.Context, projectDir string) (*orchestrator.Orchestrator, error) {
	appCfg := config.Load(projectDir)
	logger := logging.NewFromEnv("verity")

	var connector ports.Connector
	switch strings.ToLower(appCfg.Project.Engine) {
	case "postgres":
		dsn := os.Getenv("VERITY_DATABASE_URL")
		conn, err := postgres.Open(ctx, postgres.DefaultConfig(dsn))
		if err != nil {
			return nil, err
		}
		connector = conn
	default:
		connector = gms.New(appCfg.Project.Name)
	}

	var m *metrics.Metrics
	if metrics.Enabled() {
		m = metrics.Init("verity")
	}

	return &orchestrator.Orchestrator{
		ProjectDir: projectDir,
		Config:     appCfg,
		Loader:     discovery.NewLoader(appCfg),
		Schema:     schemastore.NewStore(projectDir, appCfg),
		Connector:  connector,
		Template:   template.Engine{},
		Logger:     logger,
		Metrics:    m,
	}, nil
}

func cmdRun(ctx context.Context, args []string) error {
	fset := newFlagSet("run")
	projectDir := fset.String("project-dir", ".", "project root directory")
	selectNode := fset.String("select", "", "restrict execution to a single node")
	schedule := fset.String("schedule", "", "cron expression; if set, runs repeatedly instead of once")
	if err := fset.Parse(args); err != nil {
		return err
	}

	dir, err := resolveProjectDir(*projectDir)
	if err != nil {
		return err
	}
	orch, err := buildOrchestrator(ctx, dir)
	if err != nil {
		return err
	}

	if addr := os.Getenv("VERITY_METRICS_ADDR"); addr != "" && metrics.Enabled() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "metrics server stopped: %v\n", err)
			}
		}()
		defer server.Close()
	}

	runOnce := func() error {
		result, err := orch.Run(ctx, orchestrator.RunOptions{Select: *selectNode})
		if err != nil {
			fmt.Fprintf(os.Stderr, "pipeline failed: %v\n", err)
			return err
		}
		fmt.Printf("pipeline succeeded: %d model(s) executed\n", len(result.ModelsExecuted))
		return nil
	}

	if *schedule == "" {
		return runOnce()
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, func() {
		if err := runOnce(); err != nil {
			fmt.Fprintf(os.Stderr, "scheduled run failed: %v\n", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid --schedule expression: %w", err)
	}
	c.Start()
	defer c.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cmdClean(ctx context.Context, args []string) error {
	fset := newFlagSet("clean")
	projectDir := fset.String("project-dir", ".", "project root directory")
	if err := fset.Parse(args); err != nil {
		return err
	}

	dir, err := resolveProjectDir(*projectDir)
	if err != nil {
		return err
	}
	appCfg := config.Load(dir)

	for _, target := range appCfg.Project.CleanTargets {
		path := target
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		safe, err := fs.EnsureRooted(dir, path)
		if err != nil {
			return err
		}
		if err := os.RemoveAll(safe); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", safe)
	}
	return nil
}

func cmdSources(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "generate" {
		return errors.New("usage: verity sources generate [--data-dir D] [--owner O] [--pii] [--security L] [--prune]")
	}

	fset := newFlagSet("sources generate")
	projectDir := fset.String("project-dir", ".", "project root directory")
	dataDir := fset.String("data-dir", "data", "directory to scan for CSV/Parquet files")
	owner := fset.String("owner", "", "default owner for newly discovered sources")
	pii := fset.Bool("pii", false, "mark newly discovered sources as containing PII")
	security := fset.String("security", "internal", "default security level for newly discovered sources")
	prune := fset.Bool("prune", false, "remove sources whose backing file no longer exists")
	if err := fset.Parse(args[1:]); err != nil {
		return err
	}

	dir, err := resolveProjectDir(*projectDir)
	if err != nil {
		return err
	}
	absDataDir := *dataDir
	if !filepath.IsAbs(absDataDir) {
		absDataDir = filepath.Join(dir, absDataDir)
	}
	sourcesPath := filepath.Join(dir, "models", "sources.yaml")

	added, err := discovery.ScanDataDir(absDataDir, sourcesPath, discovery.ScanOptions{
		Owner: *owner, PII: *pii, Security: *security, Prune: *prune,
	})
	if err != nil {
		return err
	}
	if len(added) == 0 {
		fmt.Println("no new sources discovered")
		return nil
	}
	fmt.Printf("added %d source(s): %s\n", len(added), strings.Join(added, ", "))
	return nil
}

func cmdDocs(ctx context.Context, args []string) error {
	fset := newFlagSet("docs")
	projectDir := fset.String("project-dir", ".", "project root directory")
	if err := fset.Parse(args); err != nil {
		return err
	}

	dir, err := resolveProjectDir(*projectDir)
	if err != nil {
		return err
	}
	appCfg := config.Load(dir)
	loader := discovery.NewLoader(appCfg)
	m, err := loader.Load(ctx, dir, appCfg.Project)
	if err != nil {
		return err
	}

	targetDir := appCfg.Project.TargetPath
	if targetDir == "" {
		targetDir = "target"
	}
	if !filepath.IsAbs(targetDir) {
		targetDir = filepath.Join(dir, targetDir)
	}
	if _, err := fs.EnsureRooted(dir, targetDir); err != nil {
		return err
	}

	if err := catalog.Generate(targetDir, m); err != nil {
		return err
	}
	fmt.Printf("catalog written to %s\n", targetDir)
	return nil
}

func cmdLineage(ctx context.Context, args []string) error {
	fset := newFlagSet("lineage")
	projectDir := fset.String("project-dir", ".", "project root directory")
	check := fset.Bool("check", false, "exit non-zero on any lineage violation")
	format := fset.String("format", "mermaid", "output format: mermaid|json")
	if err := fset.Parse(args); err != nil {
		return err
	}

	dir, err := resolveProjectDir(*projectDir)
	if err != nil {
		return err
	}
	appCfg := config.Load(dir)
	loader := discovery.NewLoader(appCfg)
	m, err := loader.Load(ctx, dir, appCfg.Project)
	if err != nil {
		return err
	}

	report := lineage.Analyze(m)

	targetDir := appCfg.Project.TargetPath
	if targetDir == "" {
		targetDir = "target"
	}
	if !filepath.IsAbs(targetDir) {
		targetDir = filepath.Join(dir, targetDir)
	}
	if _, err := fs.EnsureRooted(dir, targetDir); err != nil {
		return err
	}

	jsonBytes, err := report.ToJSON()
	if err != nil {
		return err
	}
	if err := fs.WriteAtomic(filepath.Join(targetDir, "lineage.json"), jsonBytes, 0o644); err != nil {
		return err
	}

	switch *format {
	case "json":
		fmt.Println(string(jsonBytes))
	default:
		fmt.Println(report.ToMermaid())
	}
	fmt.Println(report.Summary())

	if *check && report.HasViolations() {
		return errors.New("lineage check failed: see violations above")
	}
	return nil
}

func cmdInspect(ctx context.Context, args []string) error {
	fset := newFlagSet("inspect")
	projectDir := fset.String("project-dir", ".", "project root directory")
	table := fset.String("table", "", "table name to inspect")
	limit := fset.Int("limit", 20, "max rows to print")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if *table == "" {
		return errors.New("--table is required")
	}

	dir, err := resolveProjectDir(*projectDir)
	if err != nil {
		return err
	}
	appCfg := config.Load(dir)

	var connector ports.Connector
	switch strings.ToLower(appCfg.Project.Engine) {
	case "postgres":
		conn, err := postgres.Open(ctx, postgres.DefaultConfig(os.Getenv("VERITY_DATABASE_URL")))
		if err != nil {
			return err
		}
		connector = conn
	default:
		connector = gms.New(appCfg.Project.Name)
	}

	cols, err := connector.FetchColumns(ctx, *table)
	if err != nil {
		return err
	}
	fmt.Println("columns:")
	for _, c := range cols {
		fmt.Printf("  %s %s nullable=%v\n", c.Name, c.DataType, c.IsNullable)
	}

	sql := quoter.Quote(fmt.Sprintf("SELECT * FROM %s", *table))
	rows, err := connector.FetchSample(ctx, sql, *limit)
	if err != nil {
		return err
	}
	fmt.Printf("rows (up to %d):\n", *limit)
	for _, row := range rows {
		fmt.Printf("  %v\n", row)
	}
	return nil
}
