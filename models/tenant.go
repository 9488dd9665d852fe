package models

import "time"

const (
	TENANT_PLAN_FREE     = "free"
	TENANT_PLAN_STANDARD = "standard"
	TENANT_PLAN_PREMIUM  = "premium"
)

// Tenant is the isolation unit. Every other core entity references a
// tenant; there are no cross-tenant reads.
type Tenant struct {
	ID        int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Name      string     `gorm:"not null" json:"name"`
	Plan      string     `gorm:"not null;default:'free'" json:"plan"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
