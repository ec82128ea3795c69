package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/routewise/fieldsync/pkg/enums"
)

// SyncDLQ captures events the remote authority will never accept, parked
// for operator inspection instead of blocking the queue.
type SyncDLQ struct {
	ID           uint            `gorm:"column:id;primaryKey;autoIncrement"`
	EventID      uuid.UUID       `gorm:"column:event_id;type:uuid;not null;index"`
	Reason       enums.DLQReason `gorm:"column:reason;not null"`
	ErrorMessage *string         `gorm:"column:error_message"`
	RetryCount   int             `gorm:"column:retry_count;not null;default:0"`
	Ciphertext   []byte          `gorm:"column:ciphertext;not null"`
	Nonce        []byte          `gorm:"column:nonce;not null"`
	FailedAt     time.Time       `gorm:"column:failed_at;autoCreateTime"`
}

// TableName returns the table name for SyncDLQ.
func (SyncDLQ) TableName() string {
	return "sync_dlq"
}
