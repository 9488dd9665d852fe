package tools

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizePhone normalizes a phone number to the format the WhatsApp
// gateway accepts: digits only, international, no '+'.
//
// Heuristic (Malaysia):
// - drop everything that is not a digit
// - drop the leading trunk zeros ("012..." -> "12...")
// - prefix country code 60 when not already present
//
// Normalizing an already-normalized number is a no-op.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty phone")
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	phone = strings.TrimLeft(phone, "0")

	if !strings.HasPrefix(phone, "60") {
		phone = "60" + phone
	}

	if len(phone) < 10 {
		return "", fmt.Errorf("invalid phone length: %d", len(phone))
	}
	return phone, nil
}

// PhoneFromJID extracts the digits part of a provider JID
// ("60123456789@s.whatsapp.net" -> "60123456789").
func PhoneFromJID(jid string) string {
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		jid = jid[:i]
	}
	// Device suffixes like "60123456789:12" show up on some providers.
	if i := strings.IndexByte(jid, ':'); i >= 0 {
		jid = jid[:i]
	}
	return strings.TrimSpace(jid)
}
