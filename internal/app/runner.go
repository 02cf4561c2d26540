// Package app drives jurisdictions through the pipeline: discover the
// citations of a container, fetch them through the archive, parse, convert
// to canonical XML and persist.
package app

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"law_arch/internal/cache"
	"law_arch/internal/citation"
	"law_arch/internal/config"
	"law_arch/internal/db"
	"law_arch/internal/errs"
	"law_arch/internal/metrics"
	"law_arch/internal/registry"
)

// Job asks for the sections of one container of a jurisdiction.
type Job struct {
	Jurisdiction string
	// Container is the act or code to process.
	Container citation.Citation
	// Citations, when set, are processed instead of discovered ones.
	Citations []citation.Citation
	// MaxSections caps enumeration and document splitting. Zero means no cap.
	MaxSections int
	// Refresh bypasses the archive and fetches everything again.
	Refresh bool
	// Version overrides the source's point-in-time version.
	Version string
}

type Runner struct {
	registry *registry.Registry
	archive  *cache.Archive
	store    db.Store
	logic    config.LogicConfig
	logger   *zap.Logger
	metrics  *metrics.Collector
	now      func() time.Time
}

type Option func(*Runner)

func WithMetrics(m *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func New(reg *registry.Registry, archive *cache.Archive, store db.Store, logic config.LogicConfig, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		registry: reg,
		archive:  archive,
		store:    store,
		logic:    logic,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JobsFor builds one job per configured container of a jurisdiction:
// the priority codes when given, else every configured code. A directory
// listing source gets a single job covering the whole listing.
func (r *Runner) JobsFor(jurisdiction string) ([]Job, error) {
	sc, err := r.registry.Config(jurisdiction)
	if err != nil {
		return nil, err
	}
	j := sc.Jurisdiction
	if sc.SourceType == config.SourceBulk && sc.Listing == "drop" {
		return []Job{{Jurisdiction: j, Container: citation.Citation{Jurisdiction: j, Type: citation.TypeAct}}}, nil
	}

	keys := sc.PriorityCodes
	if len(keys) == 0 {
		keys = lo.Keys(sc.Codes)
	}
	containers := lo.Map(keys, func(key string, _ int) citation.Citation { return containerFor(j, key) })
	if len(sc.PriorityCodes) == 0 {
		slices.SortFunc(containers, citation.Compare)
	}
	return lo.Map(containers, func(c citation.Citation, _ int) Job {
		return Job{Jurisdiction: j, Container: c}
	}), nil
}

// containerFor reads a configured code key: a full container citation in
// the jurisdiction's grammar, or a bare code number.
func containerFor(jurisdiction, key string) citation.Citation {
	if c, err := citation.Parse(jurisdiction, key); err == nil && !c.IsSection() {
		return c
	}
	return citation.NewCode(jurisdiction, key)
}

// Run processes the jobs concurrently, at most MaxConcurrentWorkers at a
// time. Failures of single citations are recorded in the report; only an
// unusable configuration, archive or store aborts the run.
func (r *Runner) Run(ctx context.Context, jobs ...Job) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: r.now()}
	logger := r.logger.With(zap.String("run_id", report.RunID))

	if err := r.archive.Probe(); err != nil {
		return nil, &errs.ConfigError{Subject: "cache", Err: err}
	}
	if err := r.store.Ping(ctx); err != nil {
		return nil, &errs.ConfigError{Subject: "storage", Err: err}
	}

	runs := make([]*jobRun, len(jobs))
	for i, job := range jobs {
		jr, err := r.prepare(job, logger)
		if err != nil {
			return nil, err
		}
		runs[i] = jr
	}

	logger.Info("Run started", zap.Int("jobs", len(jobs)))

	var g errgroup.Group
	g.SetLimit(max(1, r.logic.MaxConcurrentWorkers))
	for _, jr := range runs {
		g.Go(func() error {
			jr.run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	for _, jr := range runs {
		report.Outcomes = append(report.Outcomes, jr.outcomes...)
		report.NotReached = append(report.NotReached, jr.notReached...)
	}
	report.FinishedAt = r.now()
	if r.metrics != nil {
		r.metrics.Runs.Inc()
	}

	logger.Info("Run finished",
		zap.Int("done", report.Count(StateDone)),
		zap.Int("skipped", report.Count(StateSkipped)),
		zap.Int("failed", report.Count(StateFailed)),
		zap.Int("not_reached", len(report.NotReached)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (r *Runner) prepare(job Job, logger *zap.Logger) (*jobRun, error) {
	src, err := r.registry.Source(job.Jurisdiction)
	if err != nil {
		return nil, err
	}
	parser, err := r.registry.Parser(job.Jurisdiction)
	if err != nil {
		return nil, err
	}
	sc := src.Config()
	job.Jurisdiction = sc.Jurisdiction
	if job.Container.Jurisdiction == "" && len(job.Citations) > 0 {
		job.Container = job.Citations[0].Parent()
	}
	job.Version = lo.CoalesceOrEmpty(job.Version, sc.Version)
	logger = logger.With(zap.String("jurisdiction", sc.Jurisdiction))
	if job.Version != "" {
		logger = logger.With(zap.String("version", job.Version))
	}
	return &jobRun{
		Runner:     r,
		job:        job,
		src:        src,
		parser:     parser,
		cfg:        sc,
		payloads:   r.archive.At(job.Version),
		retries:    sc.Retries(r.logic),
		retryDelay: time.Duration(r.logic.RetryDelayMS) * time.Millisecond,
		logger:     logger,
		acts:       make(map[string]*actState),
	}, nil
}
