package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"verikeep/internal/crypto/fieldcodec"
	"verikeep/pkg/domain"
)

func TestDeriveNameFromEmail(t *testing.T) {
	cases := []struct {
		email string
		first string
		last  string
	}{
		{"asha.raman@example.in", "Asha", "Raman"},
		{"r_k+test@example.in", "R", "Test"},
		{"singleword@example.in", "Singleword", "User"},
		{"@example.in", "User", "User"},
		{"", "User", "User"},
	}
	for _, c := range cases {
		first, last := DeriveNameFromEmail(c.email)
		assert.Equal(t, c.first, first, c.email)
		assert.Equal(t, c.last, last, c.email)
	}
}

func TestWarningContent(t *testing.T) {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("uses display name when readable", func(t *testing.T) {
		subject, body := WarningContent("asha.raman@example.in", "Asha Raman", domain.ModulePANKYC, date)
		assert.Contains(t, subject, "panKyc")
		assert.Contains(t, body, "Dear Asha Raman")
		assert.Contains(t, body, "15 March 2026")
	})

	t.Run("falls back to email-derived name", func(t *testing.T) {
		_, body := WarningContent("asha.raman@example.in", fieldcodec.Sentinel, domain.ModulePANKYC, date)
		assert.Contains(t, body, "Dear Asha")
		assert.False(t, strings.Contains(body, fieldcodec.Sentinel))
	})
}

func TestDeletedContent(t *testing.T) {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	subject, body := DeletedContent("owner@example.in", "", domain.ModuleBankKYC, date)
	assert.Contains(t, subject, "bankKyc")
	assert.Contains(t, body, "permanently deleted")
	assert.Contains(t, body, "Dear Owner")
}
