package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "verikeep/pkg/domain-errors"
)

// Typed UUID identifiers. Distinct types keep a RecordID from ever being
// passed where a UserID is expected; the compiler enforces the boundary.
type (
	// UserID identifies the owner of a verification record.
	UserID uuid.UUID

	// RecordID identifies a single PII record within a collection.
	RecordID uuid.UUID

	// BatchID groups records ingested together.
	BatchID uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s cannot be empty", kind))
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("invalid %s", kind))
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s cannot be nil", kind))
	}
	return u, nil
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user_id", s)
	return UserID(u), err
}

// ParseRecordID validates and returns a RecordID.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID("record_id", s)
	return RecordID(u), err
}

// ParseBatchID validates and returns a BatchID.
func ParseBatchID(s string) (BatchID, error) {
	u, err := parseUUID("batch_id", s)
	return BatchID(u), err
}

// NewUserID returns a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewRecordID returns a fresh random RecordID.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// NewBatchID returns a fresh random BatchID.
func NewBatchID() BatchID { return BatchID(uuid.New()) }

func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id RecordID) String() string { return uuid.UUID(id).String() }
func (id BatchID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BatchID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// Text marshaling lets the IDs serve as JSON object keys and round-trip
// through the persisted configuration document.

func (id UserID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id RecordID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id BatchID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id *RecordID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = RecordID(u)
	return nil
}

func (id *BatchID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = BatchID(u)
	return nil
}
