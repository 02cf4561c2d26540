package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"law_arch/internal/app"
	"law_arch/internal/cache"
	"law_arch/internal/citation"
	"law_arch/internal/config"
	"law_arch/internal/db"
	"law_arch/internal/logging"
	"law_arch/internal/metrics"
	"law_arch/internal/registry"
)

const usage = `usage: law_arch [flags] [citation ...]

Without -j every configured jurisdiction is processed. Citations are read in
the grammar of the -j jurisdiction, e.g. law_arch -j us-oh "5747 § 5747.01".
`

type options struct {
	configPath   string
	jurisdiction string
	refresh      bool
	maxSections  int
	metricsAddr  string
	purge        bool
	version      string
	list         bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "config.yaml", "configuration file")
	flag.StringVar(&opts.jurisdiction, "j", "", "jurisdiction to process")
	flag.BoolVar(&opts.refresh, "refresh", false, "bypass the raw archive and fetch again")
	flag.IntVar(&opts.maxSections, "max-sections", 0, "cap sections per container (0 = no cap)")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	flag.BoolVar(&opts.purge, "purge", false, "drop the archived payloads of -j before running")
	flag.StringVar(&opts.version, "version", "", `point-in-time text to fetch, e.g. "enacted" or "2020-01-01"`)
	flag.BoolVar(&opts.list, "list", false, "list the supported jurisdictions and exit")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "law_arch:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, args []string) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if opts.list {
		reg := registry.New(cfg.Sources, cfg.Logic, logger)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "JURISDICTION\tNAME\tSOURCE\tCODES")
		for _, info := range reg.Supported() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Jurisdiction, info.Name, info.SourceType, strings.Join(info.Codes, ", "))
		}
		return w.Flush()
	}

	archive, err := cache.NewOS(cfg.Logic.CacheDir)
	if err != nil {
		return err
	}
	if cfg.DB.Engine == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.Connection), 0o755); err != nil {
			return err
		}
	}
	store, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	collector := metrics.NewCollector("law_arch")
	if opts.metricsAddr != "" {
		srv := newServer(opts.metricsAddr, collector, store)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	reg := registry.New(cfg.Sources, cfg.Logic, logger)
	runner := app.New(reg, archive, store, cfg.Logic, logger, app.WithMetrics(collector))

	jobs, err := buildJobs(reg, runner, opts, args)
	if err != nil {
		return err
	}
	if opts.purge {
		if opts.jurisdiction == "" {
			return errors.New("-purge needs -j")
		}
		if err := archive.Purge(opts.jurisdiction); err != nil {
			return err
		}
	}

	report, err := runner.Run(ctx, jobs...)
	if err != nil {
		return err
	}
	fmt.Println(report.Summary())

	for _, j := range reg.Jurisdictions() {
		if opts.jurisdiction != "" && j != strings.ToLower(opts.jurisdiction) {
			continue
		}
		st, err := store.Stats(context.WithoutCancel(ctx), j)
		if err != nil {
			logger.Warn("Stats unavailable", zap.String("jurisdiction", j), zap.Error(err))
			continue
		}
		fmt.Printf("%s: %d sections, %d acts\n", j, st.Sections, st.Acts)
	}
	if !report.Complete() {
		return fmt.Errorf("run %s incomplete: %d failed, %d not reached",
			report.RunID, len(report.Failures()), len(report.NotReached))
	}
	return nil
}

func buildJobs(reg *registry.Registry, runner *app.Runner, opts options, args []string) ([]app.Job, error) {
	if len(args) > 0 {
		if opts.jurisdiction == "" {
			return nil, errors.New("citations need -j")
		}
		sc, err := reg.Config(opts.jurisdiction)
		if err != nil {
			return nil, err
		}
		job := app.Job{Jurisdiction: sc.Jurisdiction, Refresh: opts.refresh, MaxSections: opts.maxSections, Version: opts.version}
		for _, raw := range args {
			c, err := citation.Parse(sc.Jurisdiction, raw)
			if err != nil {
				return nil, err
			}
			job.Citations = append(job.Citations, c)
		}
		return []app.Job{job}, nil
	}

	jurisdictions := reg.Jurisdictions()
	if opts.jurisdiction != "" {
		jurisdictions = []string{opts.jurisdiction}
	}
	var jobs []app.Job
	for _, j := range jurisdictions {
		js, err := runner.JobsFor(j)
		if err != nil {
			return nil, err
		}
		for _, job := range js {
			job.Refresh = opts.refresh
			job.MaxSections = opts.maxSections
			job.Version = opts.version
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func newServer(addr string, collector *metrics.Collector, store db.Store) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", collector.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}
