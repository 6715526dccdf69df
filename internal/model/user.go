package model

import (
	"time"

	"gorm.io/gorm"
)

// User is the admin namespace: platform admins (tenant-less) and tenant
// admins. Tenant-scoped users live in their own table, see TenantUser.
// Email uniqueness is enforced per namespace, not across both.
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"type:varchar(100);not null;uniqueIndex"`
	Password  string         `json:"-" gorm:"type:varchar(255);not null"`
	Role      string         `json:"role" gorm:"type:varchar(50);not null"` // "platform_admin" or "tenant_admin"
	TenantID  *uint          `json:"tenant_id,omitempty" gorm:"index"`      // nil for platform admins
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Tenant *Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}
