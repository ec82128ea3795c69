package models

import (
	"time"

	"github.com/google/uuid"
)

// EventRecord is the on-disk shape of a captured event. Only the sync
// bookkeeping columns are stored in the clear; every business field,
// trip correlation included, lives in the sealed ciphertext.
type EventRecord struct {
	EventID    uuid.UUID `gorm:"column:event_id;type:uuid;primaryKey"`
	Synced     bool      `gorm:"column:synced;not null;default:false;index"`
	RetryCount int       `gorm:"column:retry_count;not null;default:0"`
	Ciphertext []byte    `gorm:"column:ciphertext;not null"`
	Nonce      []byte    `gorm:"column:nonce;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName returns the table name for EventRecord.
func (EventRecord) TableName() string {
	return "event_records"
}
