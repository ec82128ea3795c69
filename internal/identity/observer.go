package identity

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/routewise/fieldsync/pkg/db"
	"github.com/routewise/fieldsync/pkg/db/models"
	"github.com/routewise/fieldsync/pkg/enums"
	"github.com/routewise/fieldsync/pkg/event"
	"github.com/routewise/fieldsync/pkg/geo"
	"github.com/routewise/fieldsync/pkg/logger"
)

type eventCapturer interface {
	CaptureEvent(ctx context.Context, evType enums.EventType, tripID, dispatchID string, position geo.Point, metadata any) (event.OperationalEvent, error)
}

// Observer detects a login by an actor this device has not seen before and
// records it as an auditable fact. It is strictly observational: it never
// blocks or fails a login.
type Observer struct {
	db       *db.Client
	deviceID string
	capture  eventCapturer
	logg     *logger.Logger
}

// NewObserver builds the observer for one device.
func NewObserver(client *db.Client, deviceID string, capture eventCapturer, logg *logger.Logger) *Observer {
	return &Observer{db: client, deviceID: deviceID, capture: capture, logg: logg}
}

type newDeviceLoginMetadata struct {
	PreviousActorID string `json:"previous_actor_id,omitempty"`
	DetectedDevice  string `json:"detected_device"`
}

// ObserveLogin compares the presented actor against the device's last-known
// actor and emits a new_device_login event when they differ, including the
// very first login. Failures are logged and swallowed.
func (o *Observer) ObserveLogin(ctx context.Context, actorID string) {
	if actorID == "" {
		return
	}

	ctx = o.logg.WithActorID(ctx, actorID)
	ctx = o.logg.WithDeviceID(ctx, o.deviceID)

	var marker models.DeviceMarker
	err := o.db.DB().WithContext(ctx).
		Where("device_id = ?", o.deviceID).
		First(&marker).Error
	known := marker.KnownActorID
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		o.logg.Error(ctx, "reading device marker", err)
		return
	}

	if known == actorID {
		return
	}

	if _, err := o.capture.CaptureEvent(ctx, enums.EventNewDeviceLogin, "", "", geo.Point{}, newDeviceLoginMetadata{
		PreviousActorID: known,
		DetectedDevice:  o.deviceID,
	}); err != nil {
		o.logg.Error(ctx, "recording new device login", err)
	}

	update := models.DeviceMarker{DeviceID: o.deviceID, KnownActorID: actorID}
	err = o.db.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"known_actor_id", "updated_at"}),
		}).
		Create(&update).Error
	if err != nil {
		o.logg.Error(ctx, "updating device marker", err)
	}
}
