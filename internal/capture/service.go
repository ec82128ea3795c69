package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/routewise/fieldsync/pkg/enums"
	pkgerrors "github.com/routewise/fieldsync/pkg/errors"
	"github.com/routewise/fieldsync/pkg/event"
	"github.com/routewise/fieldsync/pkg/geo"
	"github.com/routewise/fieldsync/pkg/logger"
)

type eventStore interface {
	Save(ctx context.Context, env event.Envelope) error
}

type drainTrigger interface {
	Notify()
}

// Service is the single entry point every workflow uses to record a fact.
// It stamps identity, time and position, persists durably, then hands the
// sync engine a trigger without waiting on the network.
type Service struct {
	identity event.Identity
	store    eventStore
	trigger  drainTrigger
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds a capture service for one device session.
func NewService(identity event.Identity, store eventStore, trigger drainTrigger, logg *logger.Logger) (*Service, error) {
	if identity.ActorID == "" || identity.DeviceID == "" {
		return nil, errors.New("actor and device identity are required")
	}
	if store == nil {
		return nil, errors.New("event store is required")
	}
	if trigger == nil {
		return nil, errors.New("drain trigger is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		identity: identity,
		store:    store,
		trigger:  trigger,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Identity returns the session identity stamped onto captured events.
func (s *Service) Identity() event.Identity {
	return s.identity
}

// CaptureEvent records one operational fact. The event is durably written
// before the call returns; sync happens on its own schedule afterwards.
// A storage fault is logged and swallowed so a driver's action is never
// blocked on a broken store; the constructed event is still returned.
func (s *Service) CaptureEvent(ctx context.Context, evType enums.EventType, tripID, dispatchID string, position geo.Point, metadata any) (event.OperationalEvent, error) {
	if !evType.IsValid() {
		return event.OperationalEvent{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown event type %q", evType))
	}

	payload, err := marshalMetadata(metadata)
	if err != nil {
		return event.OperationalEvent{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "serializing event metadata")
	}

	ev := event.OperationalEvent{
		EventID:    uuid.New(),
		Type:       evType,
		ActorID:    s.identity.ActorID,
		DeviceID:   s.identity.DeviceID,
		VehicleID:  s.identity.VehicleID,
		TripID:     event.Correlation(tripID),
		DispatchID: event.Correlation(dispatchID),
		Timestamp:  s.now().UTC(),
		Geo:        position,
		Metadata:   payload,
	}

	evCtx := s.logg.WithEventID(ctx, ev.EventID.String())
	evCtx = s.logg.WithTripID(evCtx, ev.TripID)
	evCtx = s.logg.WithField(evCtx, "event_type", ev.Type)

	if err := s.store.Save(ctx, event.NewEnvelope(ev)); err != nil {
		// Losing one audit event is preferable to blocking the workflow.
		s.logg.Error(evCtx, "event not persisted, continuing without it", err)
		return ev, nil
	}

	s.logg.Info(evCtx, "event captured")
	s.trigger.Notify()
	return ev, nil
}

// ForceSync requests an immediate drain pass, for a manual "Sync Now"
// affordance. Delegates to the same coalescing trigger as capture.
func (s *Service) ForceSync() {
	s.trigger.Notify()
}

func marshalMetadata(metadata any) (json.RawMessage, error) {
	switch v := metadata.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
