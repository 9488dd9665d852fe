package models

import "time"

// Conversation is the ordered message stream between a tenant and a
// customer over one connection, optionally scoped to a contest once the
// flow selects one.
type Conversation struct {
	ID            int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	TenantID      int64      `gorm:"not null;index;unique_index:ux_conversations_scope" json:"tenant_id"`
	CustomerID    int64      `gorm:"not null;index;unique_index:ux_conversations_scope" json:"customer_id"`
	ConnectionID  int64      `gorm:"not null;unique_index:ux_conversations_scope" json:"connection_id"`
	ContestID     *int64     `gorm:"index" json:"contest_id"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at"`
	CreatedAt     *time.Time `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
}
