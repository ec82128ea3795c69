package models

import "gorm.io/gorm"

// Migrate brings the local schema up to date. The device store owns its
// schema end to end, so automigration at open is sufficient.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&EventRecord{},
		&SyncDLQ{},
		&DeviceMarker{},
	)
}
