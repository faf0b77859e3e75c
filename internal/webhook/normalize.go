package webhook

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizeE164 strips the WhatsApp JID suffix, whitespace, and hyphens,
// then prefixes "+" if absent, per spec.md §4.F. When plain digit-stripping
// leaves an ambiguous national number, phonenumbers.Parse disambiguates the
// country code rather than guessing.
func NormalizeE164(raw string) string {
	s := raw
	s = strings.TrimSuffix(s, "@s.whatsapp.net")
	s = strings.TrimSuffix(s, "@c.us")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")

	if s == "" {
		return s
	}
	if !strings.HasPrefix(s, "+") {
		s = "+" + s
	}

	if num, err := phonenumbers.Parse(s, ""); err == nil {
		return phonenumbers.Format(num, phonenumbers.E164)
	}
	return s
}
