package flow

import (
	"fmt"
	"strings"

	"peraduan/models"
)

// Default conversation texts, used when the contest has no
// operator-authored prompt for the slot.

const (
	msgReceiptMissing = "We could not find your receipt photo. Please send a clear photo of your receipt to continue."

	msgDefaultPdpa = "Before we continue, we need your consent to process your personal data for this contest in line with the Personal Data Protection Act (PDPA). Reply YES to agree or NO to decline."

	msgDefaultAgreement = "Thank you for your consent! Your participation is being processed."

	msgDefaultRejection = "We respect your decision. Your personal data will not be processed and your participation ends here. Thank you for your interest!"

	msgPdpaClarify = "Sorry, we did not catch that. Please reply YES to consent to data processing, or NO to decline."

	msgNamePrompt = "Great! To complete your entry, please reply with your full name."

	msgNameRetry = "That name looks too short. Please reply with your full name as per your identity document."

	msgEmailPrompt = "Thanks! Now please reply with your email address."

	msgEmailRetry = "That does not look like a valid email address. Please try again (e.g. name@example.com)."

	msgNricPrompt = "Almost done! Please reply with your NRIC number (e.g. 901231-01-1234)."

	msgNricRetry = "That NRIC does not look right. It should contain 12 digits, e.g. 901231-01-1234."

	msgFlaggedForReview = "Your receipt has been flagged for manual review. Our team will verify it and update you shortly."
)

func coalesce(custom, fallback string) string {
	if strings.TrimSpace(custom) != "" {
		return custom
	}
	return fallback
}

func defaultReceiptPrompt(contestName string) string {
	return fmt.Sprintf("Welcome to %s! To enter, please send a clear photo of your purchase receipt.", contestName)
}

// contestMenuMessage lists the open contests with their first keyword so
// the customer can pick one for the receipt they just sent.
func contestMenuMessage(contests []models.Contest) string {
	var b strings.Builder
	b.WriteString("Thanks for your receipt! Which contest would you like to enter? Reply with the keyword:\n")
	for i, c := range contests {
		b.WriteString(fmt.Sprintf("%d. %s", i+1, c.Name))
		if kw := c.FirstKeyword(); kw != "" {
			b.WriteString(" - reply " + strings.ToUpper(kw))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
