package store

import (
	"context"
	"sync"
	"time"

	"verikeep/internal/records/models"
	"verikeep/pkg/domain"
	"verikeep/pkg/platform/sentinel"
)

// InMemoryStore holds verification records for tests and single-node
// development. Link records reuse the same archival face through their
// projection, so one implementation serves both kinds here.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.RecordID]*models.VerificationRecord
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.RecordID]*models.VerificationRecord)}
}

// Put inserts or replaces a record. The caller is expected to have run the
// envelope's EncryptFields first; the store treats every field as opaque.
func (s *InMemoryStore) Put(_ context.Context, rec *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

// Get returns a copy of the record.
func (s *InMemoryStore) Get(_ context.Context, id domain.RecordID) (*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// Len reports the number of live records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *InMemoryStore) ListUnwarned(_ context.Context, module domain.RetentionModule) ([]*models.ArchivalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ArchivalRecord
	for _, rec := range s.records {
		if rec.Module != module {
			continue
		}
		if rec.Archival.DeletionWarningSent || rec.Archival.IsMarkedForDeletion {
			continue
		}
		out = append(out, rec.ArchivalProjection())
	}
	return out, nil
}

func (s *InMemoryStore) ListDue(_ context.Context, module domain.RetentionModule, now time.Time) ([]*models.ArchivalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ArchivalRecord
	for _, rec := range s.records {
		if rec.Module != module {
			continue
		}
		a := rec.Archival
		if !a.IsMarkedForDeletion || a.ActualDeletionDate != nil {
			continue
		}
		if a.ScheduledDeletionDate == nil || a.ScheduledDeletionDate.After(now) {
			continue
		}
		out = append(out, rec.ArchivalProjection())
	}
	return out, nil
}

func (s *InMemoryStore) MarkForDeletion(_ context.Context, id domain.RecordID, scheduled, warnedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Archival.IsMarkedForDeletion = true
	rec.Archival.ScheduledDeletionDate = &scheduled
	rec.Archival.DeletionWarningSent = true
	rec.Archival.WarningSentAt = &warnedAt
	rec.UpdatedAt = warnedAt
	return nil
}

func (s *InMemoryStore) RevertToActive(_ context.Context, id domain.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Archival.IsMarkedForDeletion = false
	rec.Archival.ScheduledDeletionDate = nil
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id domain.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, id)
	return nil
}
