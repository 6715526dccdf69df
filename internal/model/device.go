package model

import (
	"time"

	"gorm.io/gorm"
)

// DeviceType distinguishes fixed room anchors from mobile person tags
type DeviceType string

const (
	DeviceTypeRoom   DeviceType = "room"
	DeviceTypePerson DeviceType = "person"
)

// Valid reports whether the type is one of the known device types.
func (t DeviceType) Valid() bool {
	return t == DeviceTypeRoom || t == DeviceTypePerson
}

// Device is a registered physical unit owned by exactly one tenant.
// DeviceUID is the identifier the physical unit reports under and is unique
// across all tenants, so a device can never appear under two identities.
// LastContact is nil until the device first reaches the server; the online
// state is always derived from it at read time, never stored.
type Device struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	TenantID    uint           `json:"tenant_id" gorm:"index;not null"`
	DeviceUID   string         `json:"device_uid" gorm:"type:varchar(100);not null;uniqueIndex"`
	Name        string         `json:"name" gorm:"type:varchar(100)"`
	Type        DeviceType     `json:"type" gorm:"type:varchar(20);not null"`
	LastContact *time.Time     `json:"last_contact,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Tenant Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}
