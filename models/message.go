package models

import "time"

const (
	MESSAGE_DIRECTION_INBOUND  = "inbound"
	MESSAGE_DIRECTION_OUTBOUND = "outbound"
)

const (
	MESSAGE_STATUS_QUEUED    = "queued"
	MESSAGE_STATUS_SENT      = "sent"
	MESSAGE_STATUS_DELIVERED = "delivered"
	MESSAGE_STATUS_READ      = "read"
	MESSAGE_STATUS_FAILED    = "failed"
)

const (
	ATTACHMENT_KIND_IMAGE    = "image"
	ATTACHMENT_KIND_VIDEO    = "video"
	ATTACHMENT_KIND_DOCUMENT = "document"
)

// Message is the immutable record of one inbound or outbound payload.
// ProviderMsgID is unique within a tenant when present (nil for outbound
// sends that failed before the provider assigned an id).
// Status only moves forward: queued -> sent -> delivered -> read, or -> failed.
type Message struct {
	ID             int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	TenantID       int64      `gorm:"not null;index;unique_index:ux_messages_tenant_provider_msg" json:"tenant_id"`
	ConversationID int64      `gorm:"not null;index" json:"conversation_id"`
	Direction      string     `gorm:"not null;index" json:"direction"`
	Status         string     `gorm:"not null;default:'queued'" json:"status"`
	TextBody       string     `gorm:"type:text" json:"text_body"`
	ProviderMsgID  *string    `gorm:"unique_index:ux_messages_tenant_provider_msg" json:"provider_msg_id"`
	CreatedAt      *time.Time `json:"created_at"`
	SentAt         *time.Time `json:"sent_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
}

// Attachment is bound to a message; StoragePath is either the provider
// URL or a blob reference in the image store.
type Attachment struct {
	ID          int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	MessageID   int64      `gorm:"not null;index" json:"message_id"`
	Kind        string     `gorm:"not null" json:"kind"`
	StoragePath string     `gorm:"not null" json:"storage_path"`
	MimeType    string     `gorm:"default:''" json:"mime_type"`
	ByteSize    int64      `gorm:"default:0" json:"byte_size"`
	CreatedAt   *time.Time `json:"created_at"`
}
