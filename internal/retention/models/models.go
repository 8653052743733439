// Package models defines the retention configuration singleton: global
// switches, per-module defaults, per-user property-level overrides, and the
// running stats the archival sweep maintains.
package models

import (
	"fmt"
	"time"

	"verikeep/pkg/domain"
	dErrors "verikeep/pkg/domain-errors"
)

// Bounds for module settings and overrides. Out-of-range values are rejected
// before anything is persisted.
const (
	MinRetentionDays = 30
	MaxRetentionDays = 2555
	MinWarningDays   = 1
	MaxWarningDays   = 30
)

// GlobalSettings is the top-level kill switch and notification default.
type GlobalSettings struct {
	IsEnabled              bool
	SendEmailNotifications bool
	NotificationEmails     []string
}

// ModuleSettings are the per-module defaults every user starts from.
type ModuleSettings struct {
	RetentionPeriodDays    int
	WarningPeriodDays      int
	IsEnabled              bool
	SendEmailNotifications bool
	NotificationEmails     []string
}

// ModuleOverride is a partial per-user settings block. Nil pointer means
// "not overridden, fall back to the module default". The merge is
// property-level, never all-or-nothing.
type ModuleOverride struct {
	RetentionPeriodDays    *int
	WarningPeriodDays      *int
	IsEnabled              *bool
	SendEmailNotifications *bool
	NotificationEmails     []string
}

// IsEmpty reports whether the override carries no properties at all.
func (o ModuleOverride) IsEmpty() bool {
	return o.RetentionPeriodDays == nil &&
		o.WarningPeriodDays == nil &&
		o.IsEnabled == nil &&
		o.SendEmailNotifications == nil &&
		o.NotificationEmails == nil
}

// Validate rejects out-of-range properties with an error naming the bound.
func (o ModuleOverride) Validate() error {
	if o.RetentionPeriodDays != nil {
		if v := *o.RetentionPeriodDays; v < MinRetentionDays || v > MaxRetentionDays {
			return dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("retentionPeriodDays must be between %d and %d, got %d", MinRetentionDays, MaxRetentionDays, v))
		}
	}
	if o.WarningPeriodDays != nil {
		if v := *o.WarningPeriodDays; v < MinWarningDays || v > MaxWarningDays {
			return dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("warningPeriodDays must be between %d and %d, got %d", MinWarningDays, MaxWarningDays, v))
		}
	}
	return nil
}

// Merge lays incoming properties over the existing override, leaving
// untouched properties as they were.
func (o ModuleOverride) Merge(in ModuleOverride) ModuleOverride {
	out := o
	if in.RetentionPeriodDays != nil {
		out.RetentionPeriodDays = in.RetentionPeriodDays
	}
	if in.WarningPeriodDays != nil {
		out.WarningPeriodDays = in.WarningPeriodDays
	}
	if in.IsEnabled != nil {
		out.IsEnabled = in.IsEnabled
	}
	if in.SendEmailNotifications != nil {
		out.SendEmailNotifications = in.SendEmailNotifications
	}
	if in.NotificationEmails != nil {
		out.NotificationEmails = in.NotificationEmails
	}
	return out
}

// Apply produces the effective settings: module defaults with every present
// override property taken instead.
func (o ModuleOverride) Apply(defaults ModuleSettings) ModuleSettings {
	out := defaults
	if o.RetentionPeriodDays != nil {
		out.RetentionPeriodDays = *o.RetentionPeriodDays
	}
	if o.WarningPeriodDays != nil {
		out.WarningPeriodDays = *o.WarningPeriodDays
	}
	if o.IsEnabled != nil {
		out.IsEnabled = *o.IsEnabled
	}
	if o.SendEmailNotifications != nil {
		out.SendEmailNotifications = *o.SendEmailNotifications
	}
	if o.NotificationEmails != nil {
		out.NotificationEmails = o.NotificationEmails
	}
	return out
}

// UserOverride is one user's set of per-module override blocks.
type UserOverride struct {
	UserID    domain.UserID
	Modules   map[domain.RetentionModule]ModuleOverride
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ModuleStats are the running per-module counters the sweep accumulates.
type ModuleStats struct {
	RecordsProcessed int
	WarningsSent     int
	RecordsDeleted   int
	Errors           int
	LastRunAt        *time.Time
}

// Add folds one run's counts into the running totals.
func (s ModuleStats) Add(run ModuleStats) ModuleStats {
	return ModuleStats{
		RecordsProcessed: s.RecordsProcessed + run.RecordsProcessed,
		WarningsSent:     s.WarningsSent + run.WarningsSent,
		RecordsDeleted:   s.RecordsDeleted + run.RecordsDeleted,
		Errors:           s.Errors + run.Errors,
		LastRunAt:        run.LastRunAt,
	}
}

// Config is the retention configuration singleton. It is created lazily with
// defaults on first access and mutated only by admin operations and the
// sweep's combined stats update.
type Config struct {
	Global          GlobalSettings
	Modules         map[domain.RetentionModule]ModuleSettings
	UserOverrides   map[domain.UserID]*UserOverride
	Stats           map[domain.RetentionModule]ModuleStats
	LastArchivalRun *time.Time
	NextArchivalRun *time.Time
}

// DefaultConfig returns the configuration a fresh deployment starts from:
// retention enabled everywhere, one-year retention with a one-week warning
// window for the KYC modules, and the statutory maximum for links.
func DefaultConfig() *Config {
	return &Config{
		Global: GlobalSettings{
			IsEnabled:              true,
			SendEmailNotifications: true,
		},
		Modules: map[domain.RetentionModule]ModuleSettings{
			domain.ModulePANKYC: {
				RetentionPeriodDays:    365,
				WarningPeriodDays:      7,
				IsEnabled:              true,
				SendEmailNotifications: true,
			},
			domain.ModuleBankKYC: {
				RetentionPeriodDays:    365,
				WarningPeriodDays:      7,
				IsEnabled:              true,
				SendEmailNotifications: true,
			},
			domain.ModuleRecordLink: {
				RetentionPeriodDays:    MaxRetentionDays,
				WarningPeriodDays:      30,
				IsEnabled:              true,
				SendEmailNotifications: false,
			},
		},
		UserOverrides: make(map[domain.UserID]*UserOverride),
		Stats:         make(map[domain.RetentionModule]ModuleStats),
	}
}
