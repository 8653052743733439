package store

import (
	"context"
	"encoding/json"
	"sync"

	"verikeep/internal/retention/models"
	"verikeep/pkg/domain"
)

// InMemoryStore holds the singleton for tests and single-node development.
// Load and Save deep-copy through JSON so callers never share the stored
// maps with each other.
type InMemoryStore struct {
	mu  sync.Mutex
	cfg *models.Config
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) (*models.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		s.cfg = models.DefaultConfig()
	}
	return copyConfig(s.cfg)
}

func (s *InMemoryStore) Save(_ context.Context, cfg *models.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, err := copyConfig(cfg)
	if err != nil {
		return err
	}
	s.cfg = cp
	return nil
}

func copyConfig(cfg *models.Config) (*models.Config, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var cp models.Config
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, err
	}
	if cp.UserOverrides == nil {
		cp.UserOverrides = make(map[domain.UserID]*models.UserOverride)
	}
	return &cp, nil
}
