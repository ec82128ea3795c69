package enums

// DLQReason explains why an event was parked for operator review. Transient
// push failures never park an event; only a rejection the remote will keep
// repeating does.
type DLQReason string

const (
	DLQReasonNonRetryable DLQReason = "non_retryable"
)

var validDLQReasons = []DLQReason{
	DLQReasonNonRetryable,
}

// IsValid reports whether the value matches a known reason.
func (r DLQReason) IsValid() bool {
	for _, candidate := range validDLQReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
