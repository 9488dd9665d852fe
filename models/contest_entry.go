package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

const (
	ENTRY_STATUS_PENDING      = "pending"
	ENTRY_STATUS_SUBMITTED    = "submitted"
	ENTRY_STATUS_UNDER_REVIEW = "under_review"
	ENTRY_STATUS_VERIFIED     = "verified"
	ENTRY_STATUS_REJECTED     = "rejected"
	ENTRY_STATUS_WINNER       = "winner"
)

// ProductLine is one purchased item parsed off the receipt.
type ProductLine struct {
	Name string `json:"name"`
	Qty  int    `json:"qty"`
}

// ContestEntry is the submission record, unique per
// (tenant, contest, customer). Status never regresses out of the
// terminal set {verified, rejected, winner} except by operator override.
type ContestEntry struct {
	ID                string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	TenantID          int64      `gorm:"not null;index;unique_index:ux_entries_tenant_contest_customer" json:"tenant_id"`
	ContestID         int64      `gorm:"not null;unique_index:ux_entries_tenant_contest_customer" json:"contest_id"`
	CustomerID        int64      `gorm:"not null;unique_index:ux_entries_tenant_contest_customer" json:"customer_id"`
	Status            string     `gorm:"not null;default:'pending';index" json:"status"`
	ContestantName    string     `gorm:"default:''" json:"contestant_name"`
	ContestantEmail   string     `gorm:"default:''" json:"contestant_email"`
	ContestantNric    string     `gorm:"column:contestant_nric;default:''" json:"contestant_nric"`
	ReceiptImageURL   string     `gorm:"column:receipt_image_url;type:text" json:"receipt_image_url"`
	StoreName         string     `gorm:"default:''" json:"store_name"`
	StoreLocation     string     `gorm:"default:''" json:"store_location"`
	ReceiptAmount     string     `gorm:"default:''" json:"receipt_amount"`
	ProductsPurchased string     `gorm:"type:text" json:"products_purchased"`
	IsVerified        bool       `gorm:"not null;default:false" json:"is_verified"`
	RejectionReason   string     `gorm:"type:text" json:"rejection_reason"`
	SubmittedAt       *time.Time `json:"submitted_at"`
	VerifiedAt        *time.Time `json:"verified_at"`

	// Exactly-once bookkeeping for the review notifier.
	LastCustomerNotificationStatus string     `gorm:"column:last_customer_notification_status;default:''" json:"last_customer_notification_status"`
	LastCustomerNotificationAt     *time.Time `gorm:"column:last_customer_notification_at" json:"last_customer_notification_at"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func (e *ContestEntry) BeforeCreate(scope *gorm.Scope) error {
	if e.ID == "" {
		return scope.SetColumn("ID", uuid.New().String())
	}
	return nil
}

// Reference is the confirmation number shown to the contestant:
// the first 8 characters of the entry id, upper-cased.
func (e ContestEntry) Reference() string {
	id := e.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}

// IsTerminal reports whether the status is operator-terminal.
func (e ContestEntry) IsTerminal() bool {
	switch e.Status {
	case ENTRY_STATUS_VERIFIED, ENTRY_STATUS_REJECTED, ENTRY_STATUS_WINNER:
		return true
	}
	return false
}

// Products decodes the JSON-encoded purchased-item list. A broken or
// empty column decodes to nil.
func (e ContestEntry) Products() []ProductLine {
	if strings.TrimSpace(e.ProductsPurchased) == "" {
		return nil
	}
	var out []ProductLine
	if err := json.Unmarshal([]byte(e.ProductsPurchased), &out); err != nil {
		return nil
	}
	return out
}

// SetProducts stores the purchased-item list as JSON text.
func (e *ContestEntry) SetProducts(items []ProductLine) {
	if len(items) == 0 {
		e.ProductsPurchased = ""
		return
	}
	b, err := json.Marshal(items)
	if err != nil {
		return
	}
	e.ProductsPurchased = string(b)
}
