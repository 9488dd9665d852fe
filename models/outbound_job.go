package models

import "time"

const (
	OUTBOUND_JOB_STATUS_PENDING    = "pending"
	OUTBOUND_JOB_STATUS_PROCESSING = "processing"
	OUTBOUND_JOB_STATUS_DONE       = "done"
	OUTBOUND_JOB_STATUS_FAILED     = "failed"
)

// OutboundJob is a scheduled outbound text send. The flow engine uses it
// for replies that should go out shortly after another message (the
// post-consent details request); the outbox worker picks up jobs whose
// ScheduledAt has passed.
type OutboundJob struct {
	ID             int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	TenantID       int64      `gorm:"not null;index" json:"tenant_id"`
	ConversationID int64      `gorm:"not null;index" json:"conversation_id"`
	Recipient      string     `gorm:"not null" json:"recipient"`
	Text           string     `gorm:"type:text" json:"text"`
	Status         string     `gorm:"not null;default:'pending';index" json:"status"`
	ScheduledAt    *time.Time `gorm:"index" json:"scheduled_at"`
	ProcessedAt    *time.Time `json:"processed_at"`
	CreatedAt      *time.Time `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
}
