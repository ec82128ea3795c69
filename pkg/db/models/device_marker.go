package models

import "time"

// DeviceMarker records the last actor known to have used this device.
// Single row keyed by the device id.
type DeviceMarker struct {
	DeviceID     string    `gorm:"column:device_id;primaryKey"`
	KnownActorID string    `gorm:"column:known_actor_id;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name for DeviceMarker.
func (DeviceMarker) TableName() string {
	return "device_markers"
}
