package model

import "time"

// Observation is one immutable record of a person device reporting proximity
// to a room device. Rows are append-only: the tracking engine is the sole
// writer and nothing updates or deletes them. RoomDeviceID is nil when the
// person reported no room in range.
type Observation struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	TenantID       uint      `json:"tenant_id" gorm:"index;not null"`
	PersonDeviceID uint      `json:"person_device_id" gorm:"index;not null"`
	RoomDeviceID   *uint     `json:"room_device_id,omitempty" gorm:"index"`
	RSSI           int       `json:"rssi"`
	ObservedAt     time.Time `json:"observed_at" gorm:"index;not null"`
	CreatedAt      time.Time `json:"created_at"`

	// Relations
	PersonDevice Device  `json:"person_device,omitempty" gorm:"foreignKey:PersonDeviceID"`
	RoomDevice   *Device `json:"room_device,omitempty" gorm:"foreignKey:RoomDeviceID"`
}
