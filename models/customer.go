package models

import "time"

// Customer is a contestant identified by normalized phone number
// (digits only, E.164 without '+'). Unique per (tenant, phone).
// Created on first inbound message; never deleted by the core.
type Customer struct {
	ID        int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	TenantID  int64      `gorm:"not null;index;unique_index:ux_customers_tenant_phone" json:"tenant_id"`
	Name      string     `gorm:"default:''" json:"name"`
	Phone     string     `gorm:"not null;unique_index:ux_customers_tenant_phone" json:"phone"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
