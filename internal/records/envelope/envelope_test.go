package envelope

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"verikeep/internal/crypto/fieldcodec"
	"verikeep/internal/records/models"
	"verikeep/pkg/domain"
)

type EnvelopeSuite struct {
	suite.Suite
	envelope *Envelope
	codec    *fieldcodec.Codec
}

func TestEnvelopeSuite(t *testing.T) {
	suite.Run(t, new(EnvelopeSuite))
}

func (s *EnvelopeSuite) SetupTest() {
	var err error
	s.codec, err = fieldcodec.New("envelope-test-passphrase")
	s.Require().NoError(err)
	s.envelope, err = New(s.codec)
	s.Require().NoError(err)
}

func (s *EnvelopeSuite) newRecord() *models.VerificationRecord {
	return &models.VerificationRecord{
		ID:          domain.RecordID(uuid.New()),
		UserID:      domain.UserID(uuid.New()),
		Module:      domain.ModulePANKYC,
		OwnerEmail:  "asha.raman@example.in",
		IDNumber:    "FKDPR1234N",
		HolderName:  "Asha Raman",
		DateOfBirth: "1991-04-17",
	}
}

func (s *EnvelopeSuite) TestNew() {
	_, err := New(nil)
	s.Error(err)
}

func (s *EnvelopeSuite) TestEncryptFields() {
	s.Run("ciphers every declared non-empty field", func() {
		rec := s.newRecord()
		s.Require().NoError(s.envelope.EncryptFields(rec))

		s.True(fieldcodec.LooksEncrypted(rec.IDNumber))
		s.True(fieldcodec.LooksEncrypted(rec.HolderName))
		s.True(fieldcodec.LooksEncrypted(rec.DateOfBirth))
		s.Empty(rec.Document)
	})

	s.Run("second pass leaves ciphertext untouched", func() {
		rec := s.newRecord()
		s.Require().NoError(s.envelope.EncryptFields(rec))
		ciphered := rec.IDNumber

		s.Require().NoError(s.envelope.EncryptFields(rec))
		s.Equal(ciphered, rec.IDNumber)
	})

	s.Run("empty fields stay absent", func() {
		rec := s.newRecord()
		rec.DateOfBirth = ""
		s.Require().NoError(s.envelope.EncryptFields(rec))
		s.Empty(rec.DateOfBirth)
	})
}

func (s *EnvelopeSuite) TestDecryptData() {
	s.Run("round trips a persisted record", func() {
		rec := s.newRecord()
		s.Require().NoError(s.envelope.EncryptFields(rec))

		plain := s.envelope.DecryptData(rec)
		s.Equal("FKDPR1234N", plain["id_number"])
		s.Equal("Asha Raman", plain["holder_name"])
		s.Equal("1991-04-17", plain["date_of_birth"])
	})

	s.Run("never mutates the stored ciphertext", func() {
		rec := s.newRecord()
		s.Require().NoError(s.envelope.EncryptFields(rec))
		ciphered := rec.IDNumber

		_ = s.envelope.DecryptData(rec)
		s.Equal(ciphered, rec.IDNumber)
	})

	s.Run("one bad field does not poison the rest", func() {
		rec := s.newRecord()
		s.Require().NoError(s.envelope.EncryptFields(rec))
		rec.HolderName = "deadbeefdeadbeefdeadbeef" // unreadable, matches heuristic

		plain := s.envelope.DecryptData(rec)
		s.Equal(fieldcodec.Sentinel, plain["holder_name"])
		s.Equal("FKDPR1234N", plain["id_number"])
		s.Equal("1991-04-17", plain["date_of_birth"])
	})
}

func (s *EnvelopeSuite) TestDecryptBatch() {
	carriers := make([]SensitiveCarrier, 0, 50)
	for i := 0; i < 50; i++ {
		rec := s.newRecord()
		s.Require().NoError(s.envelope.EncryptFields(rec))
		carriers = append(carriers, rec)
	}

	projections, err := s.envelope.DecryptBatch(context.Background(), carriers)
	s.Require().NoError(err)
	s.Len(projections, 50)
	for _, p := range projections {
		s.Equal("FKDPR1234N", p["id_number"])
	}
}

func (s *EnvelopeSuite) TestLinkRecordFields() {
	rec := &models.LinkRecord{
		ID:             domain.RecordID(uuid.New()),
		UserID:         domain.UserID(uuid.New()),
		Module:         domain.ModuleRecordLink,
		SourceIDNumber: "FKDPR1234N",
		TargetIDNumber: "XX99-ACCT-0042",
	}
	s.Require().NoError(s.envelope.EncryptFields(rec))
	s.True(fieldcodec.LooksEncrypted(rec.SourceIDNumber))

	plain := s.envelope.DecryptData(rec)
	s.Equal("FKDPR1234N", plain["source_id_number"])
	s.Equal("XX99-ACCT-0042", plain["target_id_number"])
}
