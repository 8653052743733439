// Package orchestrator drives the two-phase archival sweep over record
// collections: warn+mark records entering their warning window, then hard
// delete records whose scheduled date has arrived, rescuing any that current
// policy no longer condemns.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"verikeep/internal/archival/lease"
	"verikeep/internal/platform/metrics"
	"verikeep/internal/records/envelope"
	recordmodels "verikeep/internal/records/models"
	recordstore "verikeep/internal/records/store"
	"verikeep/internal/retention/models"
	"verikeep/internal/retention/resolver"
	retentionstore "verikeep/internal/retention/store"
	"verikeep/pkg/domain"
	dErrors "verikeep/pkg/domain-errors"
	"verikeep/pkg/notify"
	"verikeep/pkg/platform/audit"
	"verikeep/pkg/platform/sentinel"
)

// ErrRunInProgress is returned when a run starts while another holds the
// guard. The caller gets no side effects, not even a stats update.
var ErrRunInProgress = dErrors.New(dErrors.CodeConflict, "archival run already in progress")

// RunSummary reports one completed run.
type RunSummary struct {
	Started   time.Time
	Finished  time.Time
	PerModule map[domain.RetentionModule]models.ModuleStats
}

// StatsSnapshot is the orchestrator's externally visible state: accumulated
// per-module counters plus the run timestamps.
type StatsSnapshot struct {
	Modules map[domain.RetentionModule]models.ModuleStats
	LastRun *time.Time
	NextRun *time.Time
}

type Orchestrator struct {
	stores     map[domain.RetentionModule]recordstore.ArchivalStore
	resolver   *resolver.Resolver
	cfgStore   retentionstore.ConfigStore
	envelope   *envelope.Envelope
	dispatcher notify.Dispatcher

	guard     lease.Guard
	sink      audit.Sink
	metrics   *metrics.Metrics
	logger    *slog.Logger
	sendDelay time.Duration
	interval  time.Duration
	now       func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithAuditSink(sink audit.Sink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

func WithGuard(guard lease.Guard) Option {
	return func(o *Orchestrator) { o.guard = guard }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithSendDelay sets the pause inserted after each notification send so a
// large sweep does not flood the mail transport.
func WithSendDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.sendDelay = d }
}

// WithInterval sets the expected spacing between runs, used to project
// nextArchivalRun after each run.
func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(
	stores map[domain.RetentionModule]recordstore.ArchivalStore,
	res *resolver.Resolver,
	cfgStore retentionstore.ConfigStore,
	env *envelope.Envelope,
	dispatcher notify.Dispatcher,
	opts ...Option,
) (*Orchestrator, error) {
	if len(stores) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one record store is required")
	}
	if res == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "resolver is required")
	}
	if cfgStore == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "config store is required")
	}
	if env == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "envelope is required")
	}
	if dispatcher == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "dispatcher is required")
	}

	o := &Orchestrator{
		stores:     stores,
		resolver:   res,
		cfgStore:   cfgStore,
		envelope:   env,
		dispatcher: dispatcher,
		guard:      lease.NewLocal(),
		logger:     slog.Default(),
		interval:   24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes one full sweep: phase 1 then phase 2 for every module, in a
// fixed order, then folds the counters into the retention configuration in
// one combined update. A second concurrent Run returns ErrRunInProgress
// without touching anything.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	ok, err := o.guard.TryAcquire(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to acquire run guard")
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := o.guard.Release(context.WithoutCancel(ctx)); err != nil {
			o.logger.Error("failed to release run guard", "error", err)
		}
	}()

	started := o.now().UTC()
	summary := &RunSummary{
		Started:   started,
		PerModule: make(map[domain.RetentionModule]models.ModuleStats, len(o.stores)),
	}

	for _, module := range o.modules() {
		st := o.stores[module]
		run := models.ModuleStats{}

		o.warnAndMark(ctx, module, st, &run)
		o.deleteDue(ctx, module, st, &run)

		runAt := o.now().UTC()
		run.LastRunAt = &runAt
		summary.PerModule[module] = run

		o.logger.Info("module sweep finished",
			"module", module,
			"processed", run.RecordsProcessed,
			"warned", run.WarningsSent,
			"deleted", run.RecordsDeleted,
			"errors", run.Errors)
	}

	summary.Finished = o.now().UTC()
	if err := o.commitStats(ctx, summary); err != nil {
		return summary, err
	}

	if o.metrics != nil {
		o.metrics.ArchivalRuns.Inc()
		o.metrics.ObserveRun(summary.Finished.Sub(started))
	}
	o.logAudit(ctx, audit.Event{
		Action:    audit.ActionRunCompleted,
		Resource:  "archival",
		Timestamp: summary.Finished,
	})
	return summary, nil
}

// Stats returns the accumulated counters and run timestamps.
func (o *Orchestrator) Stats(ctx context.Context) (*StatsSnapshot, error) {
	cfg, err := o.resolver.Config(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsSnapshot{
		Modules: cfg.Stats,
		LastRun: cfg.LastArchivalRun,
		NextRun: cfg.NextArchivalRun,
	}, nil
}

func (o *Orchestrator) modules() []domain.RetentionModule {
	out := make([]domain.RetentionModule, 0, len(o.stores))
	for m := range o.stores {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// warnAndMark is phase 1. Warning and marking are one transition: a record
// is never marked without its warning having been attempted in the same
// iteration.
func (o *Orchestrator) warnAndMark(ctx context.Context, module domain.RetentionModule, st recordstore.ArchivalStore, run *models.ModuleStats) {
	candidates, err := st.ListUnwarned(ctx, module)
	if err != nil {
		o.logger.Error("failed to list warn candidates", "module", module, "error", err)
		o.countError(module, run)
		return
	}

	for _, rec := range candidates {
		run.RecordsProcessed++

		warn, err := o.resolver.ShouldWarn(ctx, rec.CreatedAt, rec.UserID, module)
		if err != nil {
			o.logger.Error("failed to evaluate warn eligibility", "record_id", rec.ID, "error", err)
			o.countError(module, run)
			continue
		}
		if !warn {
			continue
		}

		scheduled, err := o.resolver.GetDeletionDate(ctx, rec.CreatedAt, rec.UserID, module)
		if err != nil || scheduled == nil {
			o.logger.Error("failed to compute scheduled deletion date", "record_id", rec.ID, "error", err)
			o.countError(module, run)
			continue
		}

		now := o.now().UTC()
		if err := st.MarkForDeletion(ctx, rec.ID, *scheduled, now); err != nil {
			o.logger.Error("failed to mark record for deletion", "record_id", rec.ID, "error", err)
			o.countError(module, run)
			continue
		}
		run.WarningsSent++
		if o.metrics != nil {
			o.metrics.WarningsSent.WithLabelValues(module.String()).Inc()
		}

		o.logAudit(ctx, audit.Event{
			Action:   audit.ActionRecordMarked,
			Module:   module,
			Resource: rec.ID.String(),
			Details: map[string]string{
				"user_id":        rec.UserID.String(),
				"scheduled_date": scheduled.Format(time.RFC3339),
			},
			Timestamp: now,
		})

		o.sendWarnings(ctx, module, rec, *scheduled, run)
	}
}

func (o *Orchestrator) sendWarnings(ctx context.Context, module domain.RetentionModule, rec *recordmodels.ArchivalRecord, scheduled time.Time, run *models.ModuleStats) {
	settings, err := o.resolver.GetUserModuleSettings(ctx, rec.UserID, module)
	if err != nil {
		o.logger.Error("failed to resolve notification settings", "record_id", rec.ID, "error", err)
		o.countError(module, run)
		return
	}
	if !settings.SendEmailNotifications {
		return
	}

	displayName := o.envelope.DecryptField(rec.HolderName)
	subject, body := notify.WarningContent(rec.OwnerEmail, displayName, module, scheduled)

	recipients := make([]string, 0, 1+len(settings.NotificationEmails))
	if rec.OwnerEmail != "" {
		recipients = append(recipients, rec.OwnerEmail)
	}
	recipients = append(recipients, settings.NotificationEmails...)

	for _, to := range recipients {
		if err := o.dispatcher.Send(ctx, to, subject, body, map[string]string{
			"record_id": rec.ID.String(),
			"module":    module.String(),
			"kind":      "deletion_warning",
		}); err != nil {
			o.logger.Error("failed to send deletion warning", "record_id", rec.ID, "to", to, "error", err)
			o.countError(module, run)
		}
		o.pause()
	}
}

// deleteDue is phase 2. Eligibility is re-evaluated against current policy:
// a record marked under an old, stricter setting is reverted instead of
// deleted when the policy has since been relaxed or disabled.
func (o *Orchestrator) deleteDue(ctx context.Context, module domain.RetentionModule, st recordstore.ArchivalStore, run *models.ModuleStats) {
	due, err := st.ListDue(ctx, module, o.now().UTC())
	if err != nil {
		o.logger.Error("failed to list due records", "module", module, "error", err)
		o.countError(module, run)
		return
	}

	for _, rec := range due {
		eligible, err := o.resolver.ShouldDelete(ctx, rec.CreatedAt, rec.UserID, module)
		if err != nil {
			o.logger.Error("failed to evaluate delete eligibility", "record_id", rec.ID, "error", err)
			o.countError(module, run)
			continue
		}

		if !eligible {
			if err := st.RevertToActive(ctx, rec.ID); err != nil {
				o.logger.Error("failed to revert record", "record_id", rec.ID, "error", err)
				o.countError(module, run)
				continue
			}
			o.logAudit(ctx, audit.Event{
				Action:    audit.ActionRecordRescued,
				Module:    module,
				Resource:  rec.ID.String(),
				Details:   map[string]string{"user_id": rec.UserID.String()},
				Timestamp: o.now().UTC(),
			})
			o.logger.Info("record rescued by policy change", "record_id", rec.ID, "module", module)
			continue
		}

		deletedAt := o.now().UTC()
		// Decrypt before the row is gone; the confirmation needs the name.
		displayName := o.envelope.DecryptField(rec.HolderName)
		if err := st.Delete(ctx, rec.ID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			o.logger.Error("failed to delete record", "record_id", rec.ID, "error", err)
			o.countError(module, run)
			continue
		}
		// The trail must only claim deletions that happened, so the event
		// follows the successful delete.
		o.logAudit(ctx, audit.Event{
			Action:   audit.ActionRecordDeleted,
			Module:   module,
			Resource: rec.ID.String(),
			Details: map[string]string{
				"user_id":    rec.UserID.String(),
				"created_at": rec.CreatedAt.Format(time.RFC3339),
			},
			Timestamp: deletedAt,
		})
		run.RecordsDeleted++
		if o.metrics != nil {
			o.metrics.RecordsDeleted.WithLabelValues(module.String()).Inc()
		}

		o.sendConfirmation(ctx, module, rec, displayName, deletedAt)
	}
}

// sendConfirmation is best-effort: a failed confirmation is logged but the
// deletion already happened and is never rolled back.
func (o *Orchestrator) sendConfirmation(ctx context.Context, module domain.RetentionModule, rec *recordmodels.ArchivalRecord, displayName string, deletedAt time.Time) {
	settings, err := o.resolver.GetUserModuleSettings(ctx, rec.UserID, module)
	if err != nil || !settings.SendEmailNotifications || rec.OwnerEmail == "" {
		return
	}

	subject, body := notify.DeletedContent(rec.OwnerEmail, displayName, module, deletedAt)
	if err := o.dispatcher.Send(ctx, rec.OwnerEmail, subject, body, map[string]string{
		"record_id": rec.ID.String(),
		"module":    module.String(),
		"kind":      "deletion_confirmation",
	}); err != nil {
		o.logger.Warn("failed to send deletion confirmation", "record_id", rec.ID, "error", err)
	}
	o.pause()
}

// commitStats folds the run's counters into the retention configuration and
// stamps the run timestamps, all in one save.
func (o *Orchestrator) commitStats(ctx context.Context, summary *RunSummary) error {
	cfg, err := o.cfgStore.Load(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load retention config")
	}
	if cfg.Stats == nil {
		cfg.Stats = make(map[domain.RetentionModule]models.ModuleStats)
	}
	for module, run := range summary.PerModule {
		cfg.Stats[module] = cfg.Stats[module].Add(run)
	}
	last := summary.Finished
	next := summary.Finished.Add(o.interval)
	cfg.LastArchivalRun = &last
	cfg.NextArchivalRun = &next

	if err := o.cfgStore.Save(ctx, cfg); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save retention config")
	}
	return nil
}

func (o *Orchestrator) countError(module domain.RetentionModule, run *models.ModuleStats) {
	run.Errors++
	if o.metrics != nil {
		o.metrics.SweepErrors.WithLabelValues(module.String()).Inc()
	}
}

func (o *Orchestrator) pause() {
	if o.sendDelay > 0 {
		time.Sleep(o.sendDelay)
	}
}

func (o *Orchestrator) logAudit(ctx context.Context, event audit.Event) {
	if o.sink == nil {
		return
	}
	if err := o.sink.Log(ctx, event); err != nil {
		o.logger.Error("failed to log audit event", "action", event.Action, "error", err)
	}
}
