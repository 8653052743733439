// Package resolver computes effective retention settings and lifecycle dates
// from the layered configuration: global switch, module defaults, per-user
// property-level overrides.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"verikeep/internal/retention/models"
	"verikeep/internal/retention/store"
	"verikeep/pkg/domain"
	dErrors "verikeep/pkg/domain-errors"
	audit "verikeep/pkg/platform/audit"
)

type Resolver struct {
	store  store.ConfigStore
	sink   audit.Sink
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithAuditSink(sink audit.Sink) Option {
	return func(r *Resolver) {
		r.sink = sink
	}
}

// WithClock injects the time source; tests pin it.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

func New(cfgStore store.ConfigStore, opts ...Option) (*Resolver, error) {
	if cfgStore == nil {
		return nil, fmt.Errorf("retention config store is required")
	}
	r := &Resolver{store: cfgStore, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config loads the singleton, default-populating on first access.
func (r *Resolver) Config(ctx context.Context) (*models.Config, error) {
	cfg, err := r.store.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load retention config")
	}
	return cfg, nil
}

// GetUserModuleSettings merges at property granularity: each property is
// taken from the user's override only when explicitly present there, else
// independently from the module default.
func (r *Resolver) GetUserModuleSettings(ctx context.Context, userID domain.UserID, module domain.RetentionModule) (models.ModuleSettings, error) {
	cfg, err := r.Config(ctx)
	if err != nil {
		return models.ModuleSettings{}, err
	}
	return effectiveSettings(cfg, userID, module)
}

func effectiveSettings(cfg *models.Config, userID domain.UserID, module domain.RetentionModule) (models.ModuleSettings, error) {
	defaults, ok := cfg.Modules[module]
	if !ok {
		return models.ModuleSettings{}, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("no retention settings for module %s", module))
	}
	if entry, ok := cfg.UserOverrides[userID]; ok {
		if override, ok := entry.Modules[module]; ok {
			return override.Apply(defaults), nil
		}
	}
	return defaults, nil
}

// enabled walks the disablement chain in order: global, module default,
// effective user level. The first disabled layer short-circuits.
func enabled(cfg *models.Config, userID domain.UserID, module domain.RetentionModule) (models.ModuleSettings, bool) {
	if !cfg.Global.IsEnabled {
		return models.ModuleSettings{}, false
	}
	defaults, ok := cfg.Modules[module]
	if !ok || !defaults.IsEnabled {
		return models.ModuleSettings{}, false
	}
	effective, err := effectiveSettings(cfg, userID, module)
	if err != nil || !effective.IsEnabled {
		return models.ModuleSettings{}, false
	}
	return effective, true
}

// GetDeletionDate returns createdAt + the effective retention period, or nil
// when retention is disabled at the global, module, or user level.
func (r *Resolver) GetDeletionDate(ctx context.Context, createdAt time.Time, userID domain.UserID, module domain.RetentionModule) (*time.Time, error) {
	cfg, err := r.Config(ctx)
	if err != nil {
		return nil, err
	}
	effective, ok := enabled(cfg, userID, module)
	if !ok {
		return nil, nil
	}
	d := createdAt.AddDate(0, 0, effective.RetentionPeriodDays)
	return &d, nil
}

// GetWarningDate returns the deletion date minus the effective warning
// period, or nil when retention is disabled anywhere in the chain.
func (r *Resolver) GetWarningDate(ctx context.Context, createdAt time.Time, userID domain.UserID, module domain.RetentionModule) (*time.Time, error) {
	cfg, err := r.Config(ctx)
	if err != nil {
		return nil, err
	}
	effective, ok := enabled(cfg, userID, module)
	if !ok {
		return nil, nil
	}
	d := createdAt.AddDate(0, 0, effective.RetentionPeriodDays-effective.WarningPeriodDays)
	return &d, nil
}

// ShouldWarn reports whether the record has entered its warning window.
func (r *Resolver) ShouldWarn(ctx context.Context, createdAt time.Time, userID domain.UserID, module domain.RetentionModule) (bool, error) {
	warningDate, err := r.GetWarningDate(ctx, createdAt, userID, module)
	if err != nil || warningDate == nil {
		return false, err
	}
	return !r.now().Before(*warningDate), nil
}

// ShouldDelete reports whether the record has passed its deletion date.
func (r *Resolver) ShouldDelete(ctx context.Context, createdAt time.Time, userID domain.UserID, module domain.RetentionModule) (bool, error) {
	deletionDate, err := r.GetDeletionDate(ctx, createdAt, userID, module)
	if err != nil || deletionDate == nil {
		return false, err
	}
	return !r.now().Before(*deletionDate), nil
}

// SetUserOverride upserts a per-module override block for the user, merging
// at property level with any existing block and stamping updatedAt. Bounds
// are validated before anything is persisted.
func (r *Resolver) SetUserOverride(ctx context.Context, userID domain.UserID, module domain.RetentionModule, override models.ModuleOverride, actorID string) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}
	if module.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "module is required")
	}
	if err := override.Validate(); err != nil {
		return err
	}

	cfg, err := r.Config(ctx)
	if err != nil {
		return err
	}
	if _, ok := cfg.Modules[module]; !ok {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no retention settings for module %s", module))
	}

	now := r.now().UTC()
	entry, ok := cfg.UserOverrides[userID]
	if !ok {
		entry = &models.UserOverride{
			UserID:    userID,
			Modules:   make(map[domain.RetentionModule]models.ModuleOverride),
			CreatedBy: actorID,
			CreatedAt: now,
		}
		cfg.UserOverrides[userID] = entry
	}
	entry.Modules[module] = entry.Modules[module].Merge(override)
	entry.UpdatedAt = now

	if err := r.store.Save(ctx, cfg); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save retention config")
	}

	r.logAudit(ctx, audit.Event{
		Action:   audit.ActionOverrideSet,
		Module:   module,
		Resource: userID.String(),
		ActorID:  actorID,
	})
	return nil
}

// RemoveUserOverride deletes one module's override block, pruning the user
// entry when no blocks remain. An empty module removes the whole entry.
func (r *Resolver) RemoveUserOverride(ctx context.Context, userID domain.UserID, module domain.RetentionModule, actorID string) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "user_id is required")
	}

	cfg, err := r.Config(ctx)
	if err != nil {
		return err
	}
	entry, ok := cfg.UserOverrides[userID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "no override for user")
	}

	if module.IsNil() {
		delete(cfg.UserOverrides, userID)
	} else {
		if _, ok := entry.Modules[module]; !ok {
			return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no %s override for user", module))
		}
		delete(entry.Modules, module)
		entry.UpdatedAt = r.now().UTC()
		if len(entry.Modules) == 0 {
			delete(cfg.UserOverrides, userID)
		}
	}

	if err := r.store.Save(ctx, cfg); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save retention config")
	}

	r.logAudit(ctx, audit.Event{
		Action:   audit.ActionOverrideRemoved,
		Module:   module,
		Resource: userID.String(),
		ActorID:  actorID,
	})
	return nil
}

func (r *Resolver) logAudit(ctx context.Context, event audit.Event) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Log(ctx, event); err != nil && r.logger != nil {
		r.logger.Error("audit log failed", "action", event.Action, "error", err)
	}
}
