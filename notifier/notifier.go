// Package notifier reacts to operator-driven contest-entry status
// transitions and sends the follow-up WhatsApp message exactly once per
// terminal status. It is invoked as an explicit post-commit hook by the
// back-office controllers.
package notifier

import (
	"context"
	"log"
	"time"

	"peraduan/models"

	"github.com/jinzhu/gorm"
)

// Sender is the outbound side of the provider adapter.
type Sender interface {
	SendText(ctx context.Context, phone, text string) (string, error)
}

// autoAckWindow suppresses the notification when the flow engine's own
// acknowledgment just went out for the same submission.
const autoAckWindow = 10 * time.Second

type Notifier struct {
	DB     *gorm.DB
	Sender Sender
}

// EntryStatusChanged applies the notification rules after an operator
// save. On send failure the bookkeeping fields are left unchanged so a
// later save can retry.
func (n *Notifier) EntryStatusChanged(ctx context.Context, entry *models.ContestEntry, oldStatus string) {
	if !notifiableTransition(oldStatus, entry.Status) {
		return
	}
	if entry.LastCustomerNotificationStatus == entry.Status {
		return
	}
	if entry.Status == models.ENTRY_STATUS_VERIFIED &&
		oldStatus == models.ENTRY_STATUS_SUBMITTED &&
		entry.SubmittedAt != nil &&
		time.Since(*entry.SubmittedAt) <= autoAckWindow {
		return
	}

	var customer models.Customer
	if err := n.DB.First(&customer, entry.CustomerID).Error; err != nil {
		log.Printf("notifier: load customer %d: %v", entry.CustomerID, err)
		return
	}

	text := messageFor(entry)
	if _, err := n.Sender.SendText(ctx, customer.Phone, text); err != nil {
		log.Printf("notifier: send to %s failed: %v", customer.Phone, err)
		return
	}

	now := time.Now()
	err := n.DB.Model(entry).Updates(map[string]any{
		"last_customer_notification_status": entry.Status,
		"last_customer_notification_at":     &now,
	}).Error
	if err != nil {
		log.Printf("notifier: update entry %s: %v", entry.ID, err)
		return
	}
	entry.LastCustomerNotificationStatus = entry.Status
	entry.LastCustomerNotificationAt = &now
}

func notifiableTransition(from, to string) bool {
	switch from {
	case models.ENTRY_STATUS_UNDER_REVIEW, models.ENTRY_STATUS_SUBMITTED, models.ENTRY_STATUS_PENDING:
	default:
		return false
	}
	switch to {
	case models.ENTRY_STATUS_VERIFIED, models.ENTRY_STATUS_REJECTED, models.ENTRY_STATUS_WINNER:
		return true
	}
	return false
}

func messageFor(entry *models.ContestEntry) string {
	switch entry.Status {
	case models.ENTRY_STATUS_VERIFIED:
		return "Good news! Your receipt has been approved after manual review. Your contest entry " + entry.Reference() + " is confirmed. Good luck!"
	case models.ENTRY_STATUS_REJECTED:
		text := "We are sorry, your contest entry " + entry.Reference() + " could not be accepted."
		if entry.RejectionReason != "" {
			text += " Reason: " + entry.RejectionReason
		}
		return text
	case models.ENTRY_STATUS_WINNER:
		return "Congratulations! Your entry " + entry.Reference() + " has been selected as a winner! Our team will contact you with the next steps."
	}
	return ""
}
