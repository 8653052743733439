// Package store persists the retention configuration singleton.
package store

import (
	"context"

	"verikeep/internal/retention/models"
)

// ConfigStore loads and saves the singleton. Load never fails on absence:
// a missing document is default-populated, persisted, and returned.
type ConfigStore interface {
	Load(ctx context.Context) (*models.Config, error)
	Save(ctx context.Context, cfg *models.Config) error
}
