package delivery

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/routewise/fieldsync/pkg/config"
	"github.com/routewise/fieldsync/pkg/enums"
	pkgerrors "github.com/routewise/fieldsync/pkg/errors"
	"github.com/routewise/fieldsync/pkg/event"
	"github.com/routewise/fieldsync/pkg/geo"
	"github.com/routewise/fieldsync/pkg/logger"
)

const defaultFacilityRadiusMeters = 100.0

type eventCapturer interface {
	CaptureEvent(ctx context.Context, evType enums.EventType, tripID, dispatchID string, position geo.Point, metadata any) (event.OperationalEvent, error)
}

// Finalizer enforces the delivery finalization rules: reconciliation must
// be complete and out-of-geofence confirmations need a justification before
// any terminal event is emitted.
type Finalizer struct {
	capture       eventCapturer
	validate      *validator.Validate
	logg          *logger.Logger
	defaultRadius float64
}

// NewFinalizer builds the workflow over the capture service.
func NewFinalizer(capture eventCapturer, cfg config.DeliveryConfig, logg *logger.Logger) *Finalizer {
	radius := cfg.FacilityRadiusMeters
	if radius <= 0 {
		radius = defaultFacilityRadiusMeters
	}
	return &Finalizer{
		capture:       capture,
		validate:      validator.New(),
		logg:          logg,
		defaultRadius: radius,
	}
}

type proxyReasonMetadata struct {
	Justification  string  `json:"justification"`
	DistanceMeters float64 `json:"distance_meters"`
}

type completionMetadata struct {
	DistanceMeters float64              `json:"distance_meters"`
	ProxyDelivery  bool                 `json:"proxy_delivery"`
	Items          []ReconciliationItem `json:"items"`
	Proof          ProofOfDelivery      `json:"proof_of_delivery"`
}

// FinalizeDelivery validates the attempt and, when it passes, emits the
// terminal events: the proxy justification first when one applies, then the
// completion fact. Both recoverable failures return synchronously so the UI
// can prompt for the missing input and re-invoke.
func (f *Finalizer) FinalizeDelivery(ctx context.Context, input Input) (Assessment, error) {
	if err := f.validate.Struct(input); err != nil {
		return Assessment{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid finalization input")
	}

	var unexplained []string
	for _, item := range input.Items {
		if item.Discrepant() {
			unexplained = append(unexplained, item.ItemID)
		}
	}
	if len(unexplained) > 0 {
		return Assessment{}, pkgerrors.New(pkgerrors.CodeReconciliationRequired, "quantity discrepancies need a reason").
			WithDetails(map[string]any{"item_ids": unexplained})
	}

	radius := input.FacilityRadiusMeters
	if radius <= 0 {
		radius = f.defaultRadius
	}

	distance := geo.DistanceMeters(input.Current, input.Expected)
	proxy := distance > radius
	if proxy && input.ProxyJustification == "" {
		return Assessment{}, pkgerrors.New(pkgerrors.CodeProxyDelivery, "confirmation is outside the facility radius").
			WithDetails(map[string]any{
				"distance_meters": distance,
				"radius_meters":   radius,
			})
	}

	assessment := Assessment{DistanceMeters: distance, ProxyDelivery: proxy}

	// The justification is captured before the completion fact so it is
	// causally prior within the trip's event stream.
	if proxy {
		warnCtx := f.logg.WithTripID(ctx, input.TripID)
		f.logg.Warn(f.logg.WithField(warnCtx, "distance_meters", distance), "proxy delivery justified by driver")

		reasonEv, err := f.capture.CaptureEvent(ctx, enums.EventProxyDeliveryReason, input.TripID, input.DispatchID, input.Current, proxyReasonMetadata{
			Justification:  input.ProxyJustification,
			DistanceMeters: distance,
		})
		if err != nil {
			return Assessment{}, err
		}
		assessment.JustificationEvent = &reasonEv
	}

	completionEv, err := f.capture.CaptureEvent(ctx, enums.EventDeliveryCompleted, input.TripID, input.DispatchID, input.Current, completionMetadata{
		DistanceMeters: distance,
		ProxyDelivery:  proxy,
		Items:          input.Items,
		Proof:          input.Proof,
	})
	if err != nil {
		return Assessment{}, err
	}
	assessment.CompletionEvent = completionEv

	return assessment, nil
}
