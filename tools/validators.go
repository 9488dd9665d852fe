package tools

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func ValidateEmail(email string) bool {
	return emailRe.MatchString(strings.TrimSpace(email))
}

// NormalizeNRIC accepts a Malaysian NRIC either as 12 bare digits or in
// dash format and returns it canonicalized as "YYMMDD-GG-NNNN".
func NormalizeNRIC(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) != 12 {
		return "", fmt.Errorf("nric must contain 12 digits, got %d", len(d))
	}
	return d[0:6] + "-" + d[6:8] + "-" + d[8:12], nil
}
