package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/poyrazK/zonewriter/internal/core/domain"
	"github.com/poyrazK/zonewriter/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval is the pause between two reconciliation passes.
const DefaultPollInterval = time.Second

// Pass results reported to metrics.
const (
	ResultUnchanged         = "unchanged"
	ResultWritten           = "written"
	ResultSourceUnavailable = "source_unavailable"
	ResultWriteFailure      = "write_failure"
	ResultError             = "error"
)

// PassResult summarizes one reconciliation pass.
type PassResult struct {
	Changed bool
	Apexes  int
	Records int
	Removed []string
	Serial  string
}

type passStatus struct {
	at  time.Time
	err error
}

// Reconciler derives zone files from tenant state on a fixed interval.
type Reconciler struct {
	source   ports.TenantSource
	store    ports.ZoneStore
	renderer *ZoneRenderer
	logger   *slog.Logger

	// Optional collaborators; nil disables them.
	Trigger  ports.Trigger
	Notifier ports.Notifier
	Metrics  ports.Metrics

	Interval      time.Duration
	RenderWorkers int
	Now           func() time.Time

	last atomic.Pointer[passStatus]
	// verified is set once the zone files on disk are known to match the
	// current renderer, either by a write or by a startup comparison.
	verified atomic.Bool
}

func NewReconciler(
	source ports.TenantSource,
	store ports.ZoneStore,
	renderer *ZoneRenderer,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		source:        source,
		store:         store,
		renderer:      renderer,
		logger:        logger,
		Interval:      DefaultPollInterval,
		RenderWorkers: 4,
		Now:           time.Now,
	}
}

// Start runs a pass immediately and then one pass per interval or trigger
// event until ctx is cancelled. Cancellation is only observed between passes;
// a started pass always runs to completion. The trigger subscription runs in
// the background and is retried after every pass until it succeeds, so a slow
// or absent trigger backend never delays reconciliation.
func (r *Reconciler) Start(ctx context.Context) error {
	r.logger.Info("starting zone reconciler", "interval", r.Interval)

	sub := &subscription{
		trigger: r.Trigger,
		logger:  r.logger,
		result:  make(chan (<-chan struct{}), 1),
	}

	timer := time.NewTimer(r.Interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			r.logger.Info("shutting down zone reconciler")
			return nil
		}

		// Errors are logged and recorded by TriggerPass; the next tick retries.
		r.TriggerPass(context.WithoutCancel(ctx))
		sub.ensure(ctx)
		timer.Reset(r.Interval)

		if !r.idle(ctx, timer, sub) {
			r.logger.Info("shutting down zone reconciler")
			return nil
		}
	}
}

// idle blocks until the next pass is due. It returns false when ctx is done.
func (r *Reconciler) idle(ctx context.Context, timer *time.Timer, sub *subscription) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case ch := <-sub.result:
			sub.pending = false
			if ch != nil {
				sub.events = ch
				r.logger.Info("subscribed to push trigger")
			}
		case _, ok := <-sub.events:
			if !ok {
				// Resubscribed after the next pass.
				sub.events = nil
				continue
			}
			r.logger.Debug("reconcile triggered by push event")
			return true
		}
	}
}

// subscription tracks the push trigger. Only the loop goroutine touches its
// fields; the subscribe call itself runs on its own goroutine and reports
// through result.
type subscription struct {
	trigger ports.Trigger
	logger  *slog.Logger
	events  <-chan struct{}
	result  chan (<-chan struct{})
	pending bool
}

func (s *subscription) ensure(ctx context.Context) {
	if s.trigger == nil || s.events != nil || s.pending {
		return
	}
	s.pending = true
	go func() {
		ch, err := s.trigger.Subscribe(ctx)
		if err != nil {
			s.logger.Warn("push trigger unavailable, polling only", "error", err)
			ch = nil
		}
		s.result <- ch
	}()
}

// TriggerPass runs one pass and records its outcome for health reporting.
func (r *Reconciler) TriggerPass(ctx context.Context) {
	logger := r.logger.With("pass_id", uuid.NewString())
	start := time.Now()

	res, err := r.runOnce(ctx, logger)
	r.last.Store(&passStatus{at: r.Now(), err: err})

	result := ResultWritten
	switch {
	case errors.Is(err, domain.ErrSourceUnavailable):
		result = ResultSourceUnavailable
		logger.Warn("tenant source unavailable, keeping last known zones", "error", err)
	case errors.Is(err, domain.ErrWriteFailure):
		result = ResultWriteFailure
		logger.Error("failed to write zones", "error", err)
	case err != nil:
		result = ResultError
		logger.Error("reconciliation pass failed", "error", err)
	case !res.Changed:
		result = ResultUnchanged
	}
	if r.Metrics != nil {
		r.Metrics.ObservePass(result, time.Since(start))
	}
}

// RunOnce executes a single reconciliation pass.
func (r *Reconciler) RunOnce(ctx context.Context) (PassResult, error) {
	res, err := r.runOnce(ctx, r.logger.With("pass_id", uuid.NewString()))
	r.last.Store(&passStatus{at: r.Now(), err: err})
	return res, err
}

func (r *Reconciler) runOnce(ctx context.Context, logger *slog.Logger) (PassResult, error) {
	records, err := r.source.ListTenantDomains(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
		}
		return PassResult{}, err
	}

	apexes := GroupByApex(records, func(c domain.Collision) {
		logger.Warn("duplicate domain in tenant state, later record wins",
			"apex", c.Apex, "local", c.Local, "previous_tenant", c.Previous, "tenant", c.Current)
		if r.Metrics != nil {
			r.Metrics.Collision(c.Apex)
		}
	})
	res := PassResult{Apexes: apexes.Len(), Records: apexes.RecordCount()}
	if r.Metrics != nil {
		r.Metrics.Inventory(res.Apexes, res.Records)
	}

	canonical, err := Canonicalize(apexes)
	if err != nil {
		return res, err
	}

	previous, err := r.store.LoadSnapshot()
	if err != nil {
		// An unreadable snapshot only costs a redundant write.
		logger.Warn("failed to load snapshot, rewriting all zones", "error", err)
		previous = nil
	}
	if Unchanged(previous, canonical) {
		if r.verified.Load() || r.zonesMatch(apexes, logger) {
			r.verified.Store(true)
			logger.Debug("tenant state unchanged", "apexes", res.Apexes, "records", res.Records)
			return res, nil
		}
		logger.Info("zone files do not match current rendering, rewriting")
	}

	res.Changed = true
	res.Serial = Serial(r.Now())
	names := apexes.Apexes()

	rendered, err := r.renderAll(ctx, apexes, names, res.Serial)
	if err != nil {
		return res, err
	}

	for i, apex := range names {
		if errWrite := r.store.WriteZone(apex, rendered[i]); errWrite != nil {
			return res, errWrite
		}
	}
	if r.Metrics != nil {
		r.Metrics.ZonesWritten(len(names))
	}

	removed, err := r.store.RemoveStale(names)
	res.Removed = removed
	if r.Metrics != nil {
		r.Metrics.ZonesRemoved(len(removed))
	}
	if err != nil {
		return res, err
	}

	if err := r.store.SaveSnapshot(canonical); err != nil {
		return res, err
	}

	r.verified.Store(true)
	logger.Info("wrote zones", "records", res.Records, "apexes", res.Apexes, "removed", len(removed), "serial", res.Serial)

	if r.Notifier != nil {
		update := domain.ZoneUpdate{Serial: res.Serial, Written: names, Removed: removed}
		if errNotify := r.Notifier.Notify(ctx, update); errNotify != nil {
			logger.Warn("failed to publish zone update", "error", errNotify)
		}
	}
	return res, nil
}

// zonesMatch compares every zone file on disk with a fresh rendering, ignoring
// the SOA serial. It catches a changed service template or a zone file lost
// while the snapshot survived.
func (r *Reconciler) zonesMatch(apexes *domain.ApexRecords, logger *slog.Logger) bool {
	for _, apex := range apexes.Apexes() {
		current, err := r.store.ReadZone(apex)
		if err != nil {
			logger.Warn("failed to read zone file", "apex", apex, "error", err)
			return false
		}
		if current == nil {
			logger.Info("zone file missing", "apex", apex)
			return false
		}
		if !SameRecords(current, r.renderer.Render(apex, apexes.RecordSet(apex), "")) {
			logger.Info("zone file out of date", "apex", apex)
			return false
		}
	}
	return true
}

// renderAll renders every apex, in parallel up to RenderWorkers. The result is
// indexed like names so writes stay in first-encounter order.
func (r *Reconciler) renderAll(ctx context.Context, apexes *domain.ApexRecords, names []string, serial string) ([][]byte, error) {
	out := make([][]byte, len(names))
	g, gctx := errgroup.WithContext(ctx)
	if r.RenderWorkers > 0 {
		g.SetLimit(r.RenderWorkers)
	}
	for i, apex := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = r.renderer.Render(apex, apexes.RecordSet(apex), serial)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("render zones: %w", err)
	}
	return out, nil
}

// LastPass returns when the most recent pass finished.
func (r *Reconciler) LastPass() (time.Time, bool) {
	last := r.last.Load()
	if last == nil {
		return time.Time{}, false
	}
	return last.at, true
}

// HealthCheck reports the outcome of the last pass and, when supported, the
// reachability of the tenant source.
func (r *Reconciler) HealthCheck(ctx context.Context) map[string]error {
	res := make(map[string]error)

	last := r.last.Load()
	switch {
	case last == nil:
		res["reconciler"] = errors.New("no pass completed yet")
	default:
		res["reconciler"] = last.err
	}

	if p, ok := r.source.(ports.Pinger); ok {
		res["source"] = p.Ping(ctx)
	}
	if p, ok := r.Trigger.(ports.Pinger); ok {
		res["trigger"] = p.Ping(ctx)
	}
	return res
}
