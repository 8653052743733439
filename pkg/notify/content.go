package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode"

	"verikeep/internal/crypto/fieldcodec"
	"verikeep/pkg/domain"
)

// Notification bodies for the retention lifecycle. Plain templates, no
// external assets: the CRUD layer owns anything fancier.

var warningTmpl = template.Must(template.New("warning").Parse(`
<p>Dear {{.Name}},</p>
<p>Your {{.Module}} verification record is scheduled for deletion on
<strong>{{.DeletionDate}}</strong> under our data retention policy.</p>
<p>No action is needed. If you require this record beyond that date, contact
support before the scheduled deletion.</p>
`))

var deletedTmpl = template.Must(template.New("deleted").Parse(`
<p>Dear {{.Name}},</p>
<p>Your {{.Module}} verification record was permanently deleted on
<strong>{{.DeletionDate}}</strong> as scheduled under our data retention policy.</p>
`))

type bodyData struct {
	Name         string
	Module       string
	DeletionDate string
}

// WarningContent builds the subject and HTML body for a deletion warning.
// displayName may be empty or unreadable; the greeting then falls back to a
// name derived from the owner email.
func WarningContent(ownerEmail, displayName string, module domain.RetentionModule, deletionDate time.Time) (subject, htmlBody string) {
	subject = fmt.Sprintf("Scheduled deletion of your %s record", module)
	htmlBody = render(warningTmpl, ownerEmail, displayName, module, deletionDate)
	return subject, htmlBody
}

// DeletedContent builds the subject and HTML body for a deletion confirmation.
func DeletedContent(ownerEmail, displayName string, module domain.RetentionModule, deletedAt time.Time) (subject, htmlBody string) {
	subject = fmt.Sprintf("Your %s record has been deleted", module)
	htmlBody = render(deletedTmpl, ownerEmail, displayName, module, deletedAt)
	return subject, htmlBody
}

func render(tmpl *template.Template, ownerEmail, displayName string, module domain.RetentionModule, date time.Time) string {
	name := displayName
	if name == "" || name == fieldcodec.Sentinel {
		first, _ := DeriveNameFromEmail(ownerEmail)
		name = first
	}
	var b strings.Builder
	_ = tmpl.Execute(&b, bodyData{
		Name:         name,
		Module:       module.String(),
		DeletionDate: date.Format("2 January 2006"),
	})
	return b.String()
}

// DeriveNameFromEmail guesses a first and last name from the local part of
// an email address, for greetings when no display name is on file.
func DeriveNameFromEmail(email string) (string, string) {
	// at == 0 means an empty local part, not a missing separator.
	localPart := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
