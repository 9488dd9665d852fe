package models

import "time"

// WhatsAppConnection binds a tenant to a provider instance.
// At most one active connection per tenant participates in the core flow.
type WhatsAppConnection struct {
	ID             int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	TenantID       int64      `gorm:"not null;index" json:"tenant_id"`
	Provider       string     `gorm:"not null;default:'wabot'" json:"provider"`
	InstanceID     string     `gorm:"column:instance_id;not null" json:"instance_id"`
	AccessTokenRef string     `gorm:"column:access_token_ref" json:"access_token_ref"`
	BusinessPhone  string     `gorm:"column:business_phone" json:"business_phone"`
	IsActive       bool       `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt      *time.Time `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
}
