package app

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"law_arch/internal/akn"
	"law_arch/internal/cache"
	"law_arch/internal/citation"
	"law_arch/internal/config"
	"law_arch/internal/errs"
	"law_arch/internal/models"
	"law_arch/internal/parsers"
	"law_arch/internal/sources"
	urlqueue "law_arch/internal/url_queue"
)

// jobRun is the state of one job. It is owned by a single goroutine.
type jobRun struct {
	*Runner
	job        Job
	src        sources.Source
	parser     parsers.Parser
	cfg        config.SourceConfig
	payloads   *cache.Archive
	retries    int
	retryDelay time.Duration
	logger     *zap.Logger

	outcomes   []*Outcome
	notReached []citation.Citation

	acts     map[string]*actState
	actOrder []string
}

// target is one unit of work: a section, or a whole act that is fetched
// once and split into sections. Position is the document position found by
// discovery; zero means unknown.
type target struct {
	citation citation.Citation
	whole    bool
	position int
}

type actState struct {
	citation citation.Citation
	title    string
	count    int
}

func (j *jobRun) run(ctx context.Context) {
	ctx = sources.WithVersion(ctx, j.job.Version)
	j.logger.Info("Job started", zap.Stringer("container", j.job.Container))

	targets, ok := j.discover(ctx)
	if ok {
		for i, t := range targets {
			if ctx.Err() != nil {
				for _, rest := range targets[i:] {
					j.notReached = append(j.notReached, rest.citation)
				}
				break
			}
			if t.whole {
				j.processDocument(ctx, t.citation)
			} else {
				j.processSection(ctx, t.citation, t.position)
			}
		}
	}
	// Committed sections stay committed: the act records are finished even
	// when the run was cancelled.
	j.finishActs(context.WithoutCancel(ctx))

	j.logger.Info("Job finished",
		zap.Stringer("container", j.job.Container),
		zap.Int("outcomes", len(j.outcomes)),
		zap.Int("not_reached", len(j.notReached)),
	)
}

// discover lists the job's targets in document order: the explicit
// citations, the source's table of contents, the whole document when the
// parser can split it, or an enumeration 1..n of section numbers.
func (j *jobRun) discover(ctx context.Context) ([]target, bool) {
	container := j.job.Container

	if len(j.job.Citations) > 0 {
		q := urlqueue.NewTargetQueue()
		for _, c := range j.job.Citations {
			q.Add(c)
		}
		var out []target
		for _, c := range q.Drain() {
			if c.Jurisdiction != j.cfg.Jurisdiction {
				o := newOutcome(c)
				o.fail(&errs.CitationFormatError{Jurisdiction: j.cfg.Jurisdiction, Raw: c.String(), Reason: "citation of another jurisdiction"})
				j.record(o)
				continue
			}
			out = append(out, target{citation: c, whole: !c.IsSection()})
		}
		return out, true
	}

	if ctx.Err() != nil {
		j.notReached = append(j.notReached, container)
		return nil, false
	}

	if lister, ok := j.src.(sources.TableOfContentsLister); ok {
		var entries []citation.Citation
		meta := newOutcome(container)
		err := j.retry(ctx, &meta.Attempts, func(ctx context.Context) error {
			var err error
			entries, err = lister.ListTableOfContents(ctx, container)
			return err
		})
		switch errs.KindOf(err) {
		case "":
			j.logger.Info("Table of contents listed", zap.Stringer("container", container), zap.Int("entries", len(entries)))
			entries = j.capped(entries)
			out := make([]target, len(entries))
			for i, c := range entries {
				out[i] = target{citation: c, whole: !c.IsSection(), position: i + 1}
			}
			return out, true
		case errs.KindUnsupported:
		case errs.KindCancelled:
			j.notReached = append(j.notReached, container)
			return nil, false
		default:
			meta.fail(err)
			j.record(meta)
			return nil, false
		}
	}

	publisher, publishes := j.src.(sources.DocumentPublisher)
	if _, splits := j.parser.(parsers.DocumentParser); splits && publishes && publisher.PublishesDocuments() {
		return []target{{citation: container.Parent(), whole: true}}, true
	}

	if _, ok := j.src.(sources.SectionFetcher); !ok {
		o := newOutcome(container)
		o.fail(&errs.UnsupportedError{Source: j.cfg.Jurisdiction, Operation: "section discovery"})
		j.record(o)
		return nil, false
	}
	n, ok := j.sectionCount(ctx, container)
	if !ok {
		return nil, false
	}
	if j.job.MaxSections > 0 {
		n = min(n, j.job.MaxSections)
	}
	out := make([]target, n)
	for i := range n {
		out[i] = target{citation: container.WithSection(strconv.Itoa(i + 1)), position: i + 1}
	}
	j.logger.Info("Enumerating sections", zap.Stringer("container", container), zap.Int("count", n))
	return out, true
}

func (j *jobRun) capped(cs []citation.Citation) []citation.Citation {
	if j.job.MaxSections > 0 && len(cs) > j.job.MaxSections {
		return cs[:j.job.MaxSections]
	}
	return cs
}

// sectionCount reads the act metadata when the source and parser support
// it, and falls back on the configured hint.
func (j *jobRun) sectionCount(ctx context.Context, container citation.Citation) (int, bool) {
	hint := j.cfg.SectionCountHint(j.logic)
	fetcher, canFetch := j.src.(sources.ActFetcher)
	meta, canParse := j.parser.(parsers.ActParser)
	if !canFetch || !canParse {
		return hint, true
	}

	o := newOutcome(container)
	raw, err := j.fetchRaw(ctx, o, container, fetcher.FetchAct)
	if err == nil {
		var act *models.Act
		act, err = meta.ParseAct(raw, container)
		if act != nil {
			st := j.act(container)
			st.title = act.Title
			st.count = act.SectionCount
			if act.SectionCount > 0 {
				return act.SectionCount, true
			}
		}
	}
	switch errs.KindOf(err) {
	case "":
	case errs.KindNotFound:
		o.fail(err)
		j.record(o)
		return 0, false
	case errs.KindCancelled:
		j.notReached = append(j.notReached, container)
		return 0, false
	default:
		j.logger.Warn("Act metadata unavailable, using section count hint",
			zap.Stringer("act", container), zap.Error(err), zap.Int("hint", hint))
	}
	return hint, true
}

func (j *jobRun) processSection(ctx context.Context, c citation.Citation, position int) {
	o := newOutcome(c)
	defer j.record(o)

	fetcher, ok := j.src.(sources.SectionFetcher)
	if !ok {
		o.fail(&errs.UnsupportedError{Source: j.cfg.Jurisdiction, Operation: "section fetch"})
		return
	}
	if !j.move(o, StateFetching) {
		return
	}
	raw, err := j.fetchRaw(ctx, o, c, fetcher.FetchSection)
	if err != nil {
		o.fail(err)
		return
	}
	if !j.move(o, StateFetched) || !j.move(o, StateParsing) {
		return
	}
	s, err := j.parser.ParseSection(raw, c)
	if !j.parsed(o, err, s != nil) {
		return
	}
	s.Position = position
	if !j.move(o, StateConverting) {
		return
	}
	written, err := j.persist(ctx, c.Parent(), s)
	if err != nil {
		o.fail(err)
		return
	}
	o.Unchanged = !written
	j.move(o, StateDone)
}

// processDocument fetches a whole act once and persists every section the
// parser finds in it.
func (j *jobRun) processDocument(ctx context.Context, act citation.Citation) {
	o := newOutcome(act)
	defer j.record(o)

	fetcher, canFetch := j.src.(sources.ActFetcher)
	splitter, canSplit := j.parser.(parsers.DocumentParser)
	if !canFetch || !canSplit {
		o.fail(&errs.UnsupportedError{Source: j.cfg.Jurisdiction, Operation: "whole document processing"})
		return
	}
	if !j.move(o, StateFetching) {
		return
	}
	raw, err := j.fetchRaw(ctx, o, act, fetcher.FetchAct)
	if err != nil {
		o.fail(err)
		return
	}
	if !j.move(o, StateFetched) || !j.move(o, StateParsing) {
		return
	}
	sections, err := splitter.ParseDocument(raw, act)
	if !j.parsed(o, err, len(sections) > 0) {
		return
	}
	if j.job.MaxSections > 0 && len(sections) > j.job.MaxSections {
		sections = sections[:j.job.MaxSections]
	}
	if !j.move(o, StateConverting) {
		return
	}
	o.Unchanged = true
	for i, s := range sections {
		if s.Position == 0 {
			s.Position = i + 1
		}
		written, err := j.persist(ctx, act, s)
		if err != nil {
			o.fail(err)
			return
		}
		o.Sections++
		if written {
			o.Unchanged = false
		}
	}
	j.move(o, StateDone)
}

// parsed applies the parse result to o. A structural mismatch that still
// produced content continues as a degraded result.
func (j *jobRun) parsed(o *Outcome, err error, produced bool) bool {
	if err != nil {
		if !produced || errs.KindOf(err) != errs.KindStructural {
			o.fail(err)
			return false
		}
		o.Degraded = true
		o.Reason = err.Error()
		j.logger.Warn("Degraded parse", zap.Stringer("citation", o.Citation), zap.Error(err))
	}
	return j.move(o, StateParsed)
}

func (j *jobRun) move(o *Outcome, to State) bool {
	if err := o.advance(to); err != nil {
		o.fail(err)
		return false
	}
	return true
}

// record files a finished outcome. A citation interrupted by cancellation
// is reported as not reached instead.
func (j *jobRun) record(o *Outcome) {
	if o.Kind == errs.KindCancelled {
		j.notReached = append(j.notReached, o.Citation)
		return
	}
	j.outcomes = append(j.outcomes, o)
	if j.metrics != nil {
		j.metrics.ObserveOutcome(j.cfg.Jurisdiction, string(o.State), string(o.Kind))
	}
	switch o.State {
	case StateDone:
		j.logger.Debug("Citation done", zap.Stringer("citation", o.Citation),
			zap.Bool("cache_hit", o.CacheHit), zap.Bool("unchanged", o.Unchanged))
	case StateSkipped:
		j.logger.Info("Citation skipped", zap.Stringer("citation", o.Citation), zap.String("reason", o.Reason))
	default:
		j.logger.Error("Citation failed", zap.Stringer("citation", o.Citation),
			zap.String("kind", string(o.Kind)), zap.String("reason", o.Reason))
	}
}

type fetchFunc func(context.Context, citation.Citation) (*sources.Payload, error)

// fetchRaw serves c from the archive, or fetches it with retries and
// archives the result.
func (j *jobRun) fetchRaw(ctx context.Context, o *Outcome, c citation.Citation, fetch fetchFunc) ([]byte, error) {
	if !j.job.Refresh {
		raw, ok, err := j.payloads.Get(c)
		if err != nil {
			j.logger.Warn("Archive read failed, fetching", zap.Stringer("citation", c), zap.Error(err))
		}
		if ok {
			o.CacheHit = true
			j.observeCache(true)
			return raw, nil
		}
	}
	j.observeCache(false)

	var payload *sources.Payload
	err := j.retry(ctx, &o.Attempts, func(ctx context.Context) error {
		var err error
		payload, err = fetch(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := j.payloads.Put(c, payload.Body); err != nil {
		j.logger.Warn("Archive write failed", zap.Stringer("citation", c), zap.Error(err))
	}
	return payload.Body, nil
}

// retry runs op until it succeeds, fails permanently or the retry budget
// is spent. Only transient errors are retried.
func (j *jobRun) retry(ctx context.Context, attempts *int, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = j.retryDelay
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(j.retries)), ctx)

	return backoff.RetryNotify(func() error {
		*attempts++
		start := time.Now()
		err := op(ctx)
		j.observeFetch(err, time.Since(start))
		if err == nil || errs.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy, func(err error, wait time.Duration) {
		j.logger.Warn("Transient fetch failure, retrying", zap.Error(err), zap.Duration("wait", wait))
	})
}

func (j *jobRun) observeFetch(err error, d time.Duration) {
	if j.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(errs.KindOf(err))
	}
	j.metrics.ObserveFetch(j.cfg.Jurisdiction, result, d)
}

func (j *jobRun) observeCache(hit bool) {
	if j.metrics != nil {
		j.metrics.ObserveCache(j.cfg.Jurisdiction, hit)
	}
}

func (j *jobRun) act(c citation.Citation) *actState {
	key := c.Key()
	st, ok := j.acts[key]
	if !ok {
		st = &actState{citation: c}
		j.acts[key] = st
		j.actOrder = append(j.actOrder, key)
	}
	return st
}

// persist writes the section unless the stored record already holds the
// same payload checksum and XML. It reports whether it wrote. A section
// without a position keeps its stored one, or goes after the last stored
// section of the act.
func (j *jobRun) persist(ctx context.Context, act citation.Citation, s *models.Section) (bool, error) {
	j.act(act)
	existing, err := j.store.GetSection(ctx, s.Citation.Key())
	if err != nil {
		return false, &errs.StorageError{Op: "read section", Err: err}
	}
	if s.Position == 0 {
		if existing != nil {
			s.Position = existing.Position
		} else if s.Position, err = j.nextPosition(ctx, act); err != nil {
			return false, err
		}
	}
	rec, err := j.sectionRecord(act, s)
	if err != nil {
		return false, err
	}
	if existing != nil &&
		existing.RawChecksum == rec.RawChecksum &&
		existing.XML == rec.XML &&
		existing.Position == rec.Position &&
		existing.ActKey == rec.ActKey {
		return false, nil
	}
	if err := j.store.UpsertSection(ctx, rec); err != nil {
		return false, &errs.StorageError{Op: "write section", Err: err}
	}
	return true, nil
}

func (j *jobRun) nextPosition(ctx context.Context, act citation.Citation) (int, error) {
	records, err := j.store.SectionsByAct(ctx, act.Key())
	if err != nil {
		return 0, &errs.StorageError{Op: "read sections", Err: err}
	}
	last := 0
	for _, rec := range records {
		last = max(last, rec.Position)
	}
	return last + 1, nil
}

func (j *jobRun) sectionRecord(act citation.Citation, s *models.Section) (models.SectionRecord, error) {
	xml, err := akn.SectionToCanonicalXML(s)
	if err != nil {
		return models.SectionRecord{}, err
	}
	doc, err := json.Marshal(s)
	if err != nil {
		return models.SectionRecord{}, err
	}
	return models.SectionRecord{
		Key:          s.Citation.Key(),
		Jurisdiction: s.Citation.Jurisdiction,
		ActKey:       act.Key(),
		Citation:     s.Citation.String(),
		Position:     s.Position,
		Heading:      s.Heading,
		Document:     string(doc),
		XML:          xml,
		RawChecksum:  s.RawChecksum,
		SourceFormat: string(s.SourceFormat),
		UpdatedAt:    j.now().Unix(),
	}, nil
}

// finishActs rebuilds the act record of every act the job touched from all
// of its stored sections, so the act document covers earlier runs too.
func (j *jobRun) finishActs(ctx context.Context) {
	for _, key := range j.actOrder {
		if err := j.finishAct(ctx, j.acts[key]); err != nil {
			j.logger.Error("Act record not written", zap.Stringer("act", j.acts[key].citation), zap.Error(err))
		}
	}
}

func (j *jobRun) finishAct(ctx context.Context, st *actState) error {
	actKey := st.citation.Key()
	records, err := j.store.SectionsByAct(ctx, actKey)
	if err != nil {
		return &errs.StorageError{Op: "read sections", Err: err}
	}
	if len(records) == 0 {
		return nil
	}
	existing, err := j.store.GetAct(ctx, actKey)
	if err != nil {
		return &errs.StorageError{Op: "read act", Err: err}
	}

	act := &models.Act{Citation: st.citation, Title: st.title, SectionCount: st.count}
	if act.Title == "" && existing != nil {
		act.Title = existing.Title
	}
	if act.Title == "" {
		act.Title = codeTitle(j.cfg, st.citation)
	}
	if act.SectionCount == 0 && existing != nil {
		act.SectionCount = existing.SectionCount
	}
	if act.SectionCount == 0 {
		act.SectionCount = len(records)
	}

	sections := make([]*models.Section, 0, len(records))
	keys := make([]string, 0, len(records))
	for _, rec := range records {
		var s models.Section
		if err := json.Unmarshal([]byte(rec.Document), &s); err != nil {
			return &errs.StorageError{Op: "decode section " + rec.Key, Err: err}
		}
		sections = append(sections, &s)
		keys = append(keys, rec.Key)
	}
	models.Merge(act, sections...)

	xml, err := akn.ToCanonicalXML(act)
	if err != nil {
		return err
	}
	if existing != nil &&
		existing.XML == xml &&
		existing.Title == act.Title &&
		existing.SectionCount == act.SectionCount &&
		slices.Equal(existing.SectionKeys, keys) {
		return nil
	}
	return j.store.UpsertAct(ctx, models.ActRecord{
		Key:          actKey,
		Jurisdiction: st.citation.Jurisdiction,
		Citation:     st.citation.String(),
		Title:        act.Title,
		SectionCount: act.SectionCount,
		SectionKeys:  keys,
		XML:          xml,
		UpdatedAt:    j.now().Unix(),
	})
}

// codeTitle looks the container up among the configured codes, whose keys
// are container citations ("ch. 290A") or bare numbers.
func codeTitle(cfg config.SourceConfig, c citation.Citation) string {
	key, ok := lo.FindKeyBy(cfg.Codes, func(key, _ string) bool {
		return containerFor(cfg.Jurisdiction, key).Equal(c)
	})
	if !ok {
		return ""
	}
	return cfg.Codes[key]
}
