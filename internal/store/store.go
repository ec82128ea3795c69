package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/routewise/fieldsync/pkg/crypto"
	"github.com/routewise/fieldsync/pkg/db"
	"github.com/routewise/fieldsync/pkg/db/models"
	"github.com/routewise/fieldsync/pkg/enums"
	pkgerrors "github.com/routewise/fieldsync/pkg/errors"
	"github.com/routewise/fieldsync/pkg/event"
)

// Store is the encrypted durable queue of captured events. It exclusively
// owns the event_records and sync_dlq tables; capture and sync go through
// this contract and never touch rows directly.
type Store struct {
	db     *db.Client
	cipher *crypto.Session
}

// New builds a Store over an open database and an initialized cipher session.
func New(client *db.Client, cipher *crypto.Session) *Store {
	return &Store{db: client, cipher: cipher}
}

// Save seals the envelope's business fields and writes the record in one
// transaction. Event ids are globally unique; a duplicate id is left
// untouched rather than overwritten.
func (s *Store) Save(ctx context.Context, env event.Envelope) error {
	ciphertext, nonce, err := s.cipher.EncryptJSON(env.OperationalEvent)
	if err != nil {
		return err
	}

	record := models.EventRecord{
		EventID:    env.EventID,
		Synced:     env.Synced,
		RetryCount: env.RetryCount,
		Ciphertext: ciphertext,
		Nonce:      nonce,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "saving event record")
	}
	return nil
}

// ListPending returns up to limit unsynced envelopes in capture order,
// decrypted; limit <= 0 means no bound. A record that fails to decrypt does
// not abort the listing; the failures are aggregated into the returned error
// while the readable envelopes are still returned for draining.
func (s *Store) ListPending(ctx context.Context, limit int) ([]event.Envelope, error) {
	query := s.db.DB().WithContext(ctx).
		Where("synced = ?", false).
		Order("created_at ASC").
		Order("event_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.EventRecord
	err := query.Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "listing pending records")
	}

	envelopes := make([]event.Envelope, 0, len(rows))
	var decryptErrs error
	for _, row := range rows {
		var ev event.OperationalEvent
		if err := s.cipher.DecryptJSON(row.Ciphertext, row.Nonce, &ev); err != nil {
			decryptErrs = multierr.Append(decryptErrs, fmt.Errorf("event %s: %w", row.EventID, err))
			continue
		}
		envelopes = append(envelopes, event.Envelope{
			OperationalEvent: ev,
			Synced:           row.Synced,
			RetryCount:       row.RetryCount,
		})
	}
	return envelopes, decryptErrs
}

// MarkSynced flips the synced flag. Marking an already-synced or unknown id
// is a no-op; a crash between server ack and local mark must be retryable.
func (s *Store) MarkSynced(ctx context.Context, eventID uuid.UUID) error {
	err := s.db.DB().WithContext(ctx).
		Model(&models.EventRecord{}).
		Where("event_id = ? AND synced = ?", eventID, false).
		Update("synced", true).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "marking event synced")
	}
	return nil
}

// IncrementRetry persists one more failed push attempt for the event.
func (s *Store) IncrementRetry(ctx context.Context, eventID uuid.UUID) error {
	err := s.db.DB().WithContext(ctx).
		Model(&models.EventRecord{}).
		Where("event_id = ?", eventID).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "incrementing retry count")
	}
	return nil
}

// DeadLetter parks an event the remote authority will never accept: in one
// transaction the sealed payload is copied to sync_dlq and the record is
// marked synced so it stops blocking the queue.
func (s *Store) DeadLetter(ctx context.Context, eventID uuid.UUID, reason enums.DLQReason, cause error) error {
	if !reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown dlq reason %q", reason))
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var row models.EventRecord
		if err := tx.Where("event_id = ?", eventID).First(&row).Error; err != nil {
			return err
		}

		entry := models.SyncDLQ{
			EventID:      row.EventID,
			Reason:       reason,
			ErrorMessage: errorMessage(cause),
			RetryCount:   row.RetryCount,
			Ciphertext:   row.Ciphertext,
			Nonce:        row.Nonce,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		return tx.Model(&models.EventRecord{}).
			Where("event_id = ?", row.EventID).
			Update("synced", true).Error
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "dead-lettering event")
	}
	return nil
}

// ListDeadLetters returns parked events for operator inspection.
func (s *Store) ListDeadLetters(ctx context.Context) ([]models.SyncDLQ, error) {
	var rows []models.SyncDLQ
	err := s.db.DB().WithContext(ctx).
		Order("failed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "listing dead letters")
	}
	return rows, nil
}

// PendingCount reports the unsynced backlog size.
func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.DB().WithContext(ctx).
		Model(&models.EventRecord{}).
		Where("synced = ?", false).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "counting pending records")
	}
	return count, nil
}

func errorMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}
