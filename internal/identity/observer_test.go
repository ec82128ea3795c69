package identity

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routewise/fieldsync/pkg/config"
	"github.com/routewise/fieldsync/pkg/db"
	"github.com/routewise/fieldsync/pkg/enums"
	"github.com/routewise/fieldsync/pkg/event"
	"github.com/routewise/fieldsync/pkg/geo"
	"github.com/routewise/fieldsync/pkg/logger"
)

type recordedEvent struct {
	evType   enums.EventType
	metadata any
}

type fakeCapturer struct {
	events []recordedEvent
}

func (f *fakeCapturer) CaptureEvent(_ context.Context, evType enums.EventType, _, _ string, _ geo.Point, metadata any) (event.OperationalEvent, error) {
	f.events = append(f.events, recordedEvent{evType: evType, metadata: metadata})
	return event.OperationalEvent{EventID: uuid.New(), Type: evType, Timestamp: time.Now().UTC()}, nil
}

func newTestObserver(t *testing.T) (*Observer, *fakeCapturer) {
	t.Helper()
	client, err := db.New(context.Background(), config.DBConfig{
		Path:         filepath.Join(t.TempDir(), "fieldsync.db"),
		BusyTimeout:  time.Second,
		MaxOpenConns: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	capturer := &fakeCapturer{}
	logg := logger.New(logger.Options{ServiceName: "identity-test", Level: zerolog.Disabled, Output: io.Discard})
	return NewObserver(client, "device-1", capturer, logg), capturer
}

func TestObserveLogin_FirstLoginEmits(t *testing.T) {
	observer, capturer := newTestObserver(t)

	observer.ObserveLogin(context.Background(), "driver-1")

	require.Len(t, capturer.events, 1)
	assert.Equal(t, enums.EventNewDeviceLogin, capturer.events[0].evType)

	meta, ok := capturer.events[0].metadata.(newDeviceLoginMetadata)
	require.True(t, ok)
	assert.Empty(t, meta.PreviousActorID)
	assert.Equal(t, "device-1", meta.DetectedDevice)
}

func TestObserveLogin_SameActorIsQuiet(t *testing.T) {
	observer, capturer := newTestObserver(t)

	observer.ObserveLogin(context.Background(), "driver-1")
	observer.ObserveLogin(context.Background(), "driver-1")

	assert.Len(t, capturer.events, 1)
}

func TestObserveLogin_ActorChangeEmitsWithPrevious(t *testing.T) {
	observer, capturer := newTestObserver(t)

	observer.ObserveLogin(context.Background(), "driver-1")
	observer.ObserveLogin(context.Background(), "driver-2")

	require.Len(t, capturer.events, 2)
	meta, ok := capturer.events[1].metadata.(newDeviceLoginMetadata)
	require.True(t, ok)
	assert.Equal(t, "driver-1", meta.PreviousActorID)
}

func TestObserveLogin_EmptyActorIgnored(t *testing.T) {
	observer, capturer := newTestObserver(t)

	observer.ObserveLogin(context.Background(), "")

	assert.Empty(t, capturer.events)
}
