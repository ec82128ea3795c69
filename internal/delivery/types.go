package delivery

import (
	"github.com/shopspring/decimal"

	"github.com/routewise/fieldsync/pkg/event"
	"github.com/routewise/fieldsync/pkg/geo"
)

// ReconciliationItem is one per-item confirmation line: either delivered
// quantity matches expected, or an explicit discrepancy reason is given.
type ReconciliationItem struct {
	ItemID            string          `json:"item_id" validate:"required"`
	ExpectedQty       decimal.Decimal `json:"expected_qty"`
	DeliveredQty      decimal.Decimal `json:"delivered_qty"`
	DiscrepancyReason string          `json:"discrepancy_reason,omitempty"`
}

// Discrepant reports whether delivered differs from expected without a reason.
func (i ReconciliationItem) Discrepant() bool {
	return !i.DeliveredQty.Equal(i.ExpectedQty) && i.DiscrepancyReason == ""
}

// ProofOfDelivery is the artifact attached to a completed delivery.
type ProofOfDelivery struct {
	SignedBy string `json:"signed_by,omitempty"`
	PhotoRef string `json:"photo_ref,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Input carries everything a finalization attempt needs. A zero
// FacilityRadiusMeters falls back to the configured default.
type Input struct {
	TripID               string    `validate:"required"`
	DispatchID           string    `validate:"required"`
	Current              geo.Point
	Expected             geo.Point
	Items                []ReconciliationItem `validate:"dive"`
	Proof                ProofOfDelivery
	FacilityRadiusMeters float64 `validate:"gte=0"`
	ProxyJustification   string
}

// Assessment is the ephemeral result of one finalization attempt. It is
// computed fresh each call and never persisted.
type Assessment struct {
	DistanceMeters     float64
	ProxyDelivery      bool
	JustificationEvent *event.OperationalEvent
	CompletionEvent    event.OperationalEvent
}
