package enums

// EventType is the closed set of operational facts the engine records.
type EventType string

const (
	EventDeliveryCompleted      EventType = "delivery_completed"
	EventProxyDeliveryReason    EventType = "proxy_delivery_reason_recorded"
	EventNewDeviceLogin         EventType = "new_device_login"
	EventTripStarted            EventType = "trip_started"
	EventTripCompleted          EventType = "trip_completed"
)

var validEventTypes = []EventType{
	EventDeliveryCompleted,
	EventProxyDeliveryReason,
	EventNewDeviceLogin,
	EventTripStarted,
	EventTripCompleted,
}

// IsValid reports whether the value belongs to the closed event type set.
func (e EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}
