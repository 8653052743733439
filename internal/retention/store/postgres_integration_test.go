//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"verikeep/internal/retention/models"
	"verikeep/internal/retention/store"
	"verikeep/pkg/domain"
	"verikeep/pkg/testutil/containers"
)

type PostgresConfigSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresConfigSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresConfigSuite))
}

func (s *PostgresConfigSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresConfigSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background(), "retention_config"))
}

func (s *PostgresConfigSuite) TestLoadDefaultPopulates() {
	ctx := context.Background()

	cfg, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.True(cfg.Global.IsEnabled)
	s.Equal(365, cfg.Modules[domain.ModulePANKYC].RetentionPeriodDays)

	// The default document is now durable.
	again, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal(cfg.Modules, again.Modules)
}

func (s *PostgresConfigSuite) TestSaveLoadRoundTrip() {
	ctx := context.Background()

	cfg, err := s.store.Load(ctx)
	s.Require().NoError(err)

	userID := domain.UserID(uuid.New())
	retention := 90
	cfg.UserOverrides[userID] = &models.UserOverride{
		UserID: userID,
		Modules: map[domain.RetentionModule]models.ModuleOverride{
			domain.ModulePANKYC: {RetentionPeriodDays: &retention},
		},
		CreatedBy: "admin-1",
	}
	cfg.Stats[domain.ModulePANKYC] = models.ModuleStats{RecordsDeleted: 3}
	s.Require().NoError(s.store.Save(ctx, cfg))

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)

	entry := got.UserOverrides[userID]
	s.Require().NotNil(entry, "user-keyed map survives the JSONB round trip")
	s.Require().NotNil(entry.Modules[domain.ModulePANKYC].RetentionPeriodDays)
	s.Equal(90, *entry.Modules[domain.ModulePANKYC].RetentionPeriodDays)
	s.Equal(3, got.Stats[domain.ModulePANKYC].RecordsDeleted)
}
