package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// TenantUser is a tenant-scoped user carrying the capability scopes it may
// exercise. Scopes is stored as a comma-separated list ("tracking,config").
type TenantUser struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	TenantID  uint           `json:"tenant_id" gorm:"index;not null"`
	Email     string         `json:"email" gorm:"type:varchar(100);not null;uniqueIndex"`
	Password  string         `json:"-" gorm:"type:varchar(255);not null"`
	Scopes    string         `json:"scopes" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Tenant Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

// ScopeNames splits the stored scope list.
func (u *TenantUser) ScopeNames() []string {
	if u.Scopes == "" {
		return nil
	}
	parts := strings.Split(u.Scopes, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

// SetScopes stores the scope list in its serialized form.
func (u *TenantUser) SetScopes(names []string) {
	u.Scopes = strings.Join(names, ",")
}
