// Package models defines the PII record kinds and their archival sub-state.
// Sensitive fields are stored encrypted and are opaque to every store; the
// declared field sets below are the only coupling between a record kind and
// the field codec.
package models

import (
	"time"

	"verikeep/pkg/domain"
)

// Status is the verification workflow state of a record. Records enter the
// system ACTIVE from the ingestion workflow; only the archival sweep mutates
// them afterwards.
type Status string

const (
	StatusActive   Status = "active"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// ArchivalState is the retention lifecycle sub-document carried by every
// record kind.
//
// Invariant: ScheduledDeletionDate is set iff IsMarkedForDeletion is true
// (modulo the brief window before the sweep has run).
type ArchivalState struct {
	IsMarkedForDeletion   bool
	ScheduledDeletionDate *time.Time
	DeletionWarningSent   bool
	WarningSentAt         *time.Time
	ActualDeletionDate    *time.Time
}

// VerificationRecord is an identity-verification result. IDNumber, HolderName,
// DateOfBirth and Document are ciphered at rest.
type VerificationRecord struct {
	ID         domain.RecordID
	UserID     domain.UserID
	BatchID    domain.BatchID
	Module     domain.RetentionModule
	OwnerEmail string

	IDNumber    string
	HolderName  string
	DateOfBirth string
	// Document holds the extracted document payload, serialized to JSON and
	// ciphered as a single field.
	Document string

	Status    Status
	Archival  ArchivalState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SensitiveFields declares which attributes pass through the field codec.
func (r *VerificationRecord) SensitiveFields() map[string]*string {
	return map[string]*string{
		"id_number":     &r.IDNumber,
		"holder_name":   &r.HolderName,
		"date_of_birth": &r.DateOfBirth,
		"document":      &r.Document,
	}
}

// LinkRecord ties two identity numbers together (e.g. a PAN linked to a bank
// account). Both numbers are ciphered at rest.
type LinkRecord struct {
	ID         domain.RecordID
	UserID     domain.UserID
	BatchID    domain.BatchID
	Module     domain.RetentionModule
	OwnerEmail string

	SourceIDNumber string
	TargetIDNumber string

	Status    Status
	Archival  ArchivalState
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *LinkRecord) SensitiveFields() map[string]*string {
	return map[string]*string{
		"source_id_number": &r.SourceIDNumber,
		"target_id_number": &r.TargetIDNumber,
	}
}

// ArchivalRecord is the projection of any record kind the archival sweep
// operates on. Domain fields stay behind in the collection; only ownership,
// age, the ciphered display name and the archival sub-state travel.
type ArchivalRecord struct {
	ID         domain.RecordID
	UserID     domain.UserID
	Module     domain.RetentionModule
	OwnerEmail string
	// HolderName is the ciphered display field used for notification
	// content; the sweep decodes it on demand.
	HolderName string
	CreatedAt  time.Time
	Archival   ArchivalState
}

// ArchivalProjection converts a VerificationRecord for the sweep.
func (r *VerificationRecord) ArchivalProjection() *ArchivalRecord {
	return &ArchivalRecord{
		ID:         r.ID,
		UserID:     r.UserID,
		Module:     r.Module,
		OwnerEmail: r.OwnerEmail,
		HolderName: r.HolderName,
		CreatedAt:  r.CreatedAt,
		Archival:   r.Archival,
	}
}

// ArchivalProjection converts a LinkRecord for the sweep. Link records carry
// no display name; notifications fall back to the owner email.
func (r *LinkRecord) ArchivalProjection() *ArchivalRecord {
	return &ArchivalRecord{
		ID:         r.ID,
		UserID:     r.UserID,
		Module:     r.Module,
		OwnerEmail: r.OwnerEmail,
		CreatedAt:  r.CreatedAt,
		Archival:   r.Archival,
	}
}
