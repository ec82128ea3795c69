package capture

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routewise/fieldsync/pkg/enums"
	pkgerrors "github.com/routewise/fieldsync/pkg/errors"
	"github.com/routewise/fieldsync/pkg/event"
	"github.com/routewise/fieldsync/pkg/geo"
	"github.com/routewise/fieldsync/pkg/logger"
)

type recordingStore struct {
	saved   []event.Envelope
	saveErr error
}

func (r *recordingStore) Save(_ context.Context, env event.Envelope) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, env)
	return nil
}

type countingTrigger struct {
	notified int
}

func (c *countingTrigger) Notify() {
	c.notified++
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "capture-test", Level: zerolog.Disabled, Output: io.Discard})
}

func testIdentity() event.Identity {
	return event.Identity{ActorID: "driver-1", DeviceID: "device-1", VehicleID: "truck-7"}
}

func newTestService(t *testing.T, store *recordingStore, trigger *countingTrigger) *Service {
	t.Helper()
	svc, err := NewService(testIdentity(), store, trigger, testLogger())
	require.NoError(t, err)
	return svc
}

func TestCaptureEvent_StampsIdentityTimeAndGeo(t *testing.T) {
	store := &recordingStore{}
	trigger := &countingTrigger{}
	svc := newTestService(t, store, trigger)

	position := geo.Point{Lat: 40.7, Lng: -74.0}
	before := time.Now().UTC()
	ev, err := svc.CaptureEvent(context.Background(), enums.EventTripStarted, "trip-1", "dispatch-1", position, map[string]string{"odometer": "120934"})
	after := time.Now().UTC()
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, ev.EventID)
	assert.Equal(t, enums.EventTripStarted, ev.Type)
	assert.Equal(t, "driver-1", ev.ActorID)
	assert.Equal(t, "device-1", ev.DeviceID)
	assert.Equal(t, "truck-7", ev.VehicleID)
	assert.Equal(t, "trip-1", ev.TripID)
	assert.Equal(t, "dispatch-1", ev.DispatchID)
	assert.Equal(t, position, ev.Geo)
	assert.False(t, ev.Timestamp.Before(before))
	assert.False(t, ev.Timestamp.After(after))
	assert.JSONEq(t, `{"odometer":"120934"}`, string(ev.Metadata))
}

func TestCaptureEvent_PersistsBeforeReturning(t *testing.T) {
	store := &recordingStore{}
	trigger := &countingTrigger{}
	svc := newTestService(t, store, trigger)

	ev, err := svc.CaptureEvent(context.Background(), enums.EventTripStarted, "trip-1", "dispatch-1", geo.Point{}, nil)
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	assert.Equal(t, ev.EventID, store.saved[0].EventID)
	assert.False(t, store.saved[0].Synced)
	assert.Zero(t, store.saved[0].RetryCount)
	assert.Equal(t, 1, trigger.notified)
}

func TestCaptureEvent_SentinelCorrelation(t *testing.T) {
	store := &recordingStore{}
	svc := newTestService(t, store, &countingTrigger{})

	ev, err := svc.CaptureEvent(context.Background(), enums.EventNewDeviceLogin, "", "", geo.Point{}, nil)
	require.NoError(t, err)

	assert.Equal(t, event.SystemCorrelation, ev.TripID)
	assert.Equal(t, event.SystemCorrelation, ev.DispatchID)
}

func TestCaptureEvent_RejectsUnknownType(t *testing.T) {
	store := &recordingStore{}
	svc := newTestService(t, store, &countingTrigger{})

	_, err := svc.CaptureEvent(context.Background(), enums.EventType("made_up"), "trip-1", "", geo.Point{}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, store.saved)
}

func TestCaptureEvent_StorageFaultIsSwallowed(t *testing.T) {
	store := &recordingStore{saveErr: pkgerrors.New(pkgerrors.CodeStorageUnavailable, "disk gone")}
	trigger := &countingTrigger{}
	svc := newTestService(t, store, trigger)

	ev, err := svc.CaptureEvent(context.Background(), enums.EventTripCompleted, "trip-1", "dispatch-1", geo.Point{}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, ev.EventID)

	// No durable write happened, so no sync trigger either.
	assert.Zero(t, trigger.notified)
}

func TestForceSync_Notifies(t *testing.T) {
	trigger := &countingTrigger{}
	svc := newTestService(t, &recordingStore{}, trigger)

	svc.ForceSync()
	svc.ForceSync()
	assert.Equal(t, 2, trigger.notified)
}
