package sync

// NonRetryableError marks a push failure that retrying cannot fix, such as
// the remote authority rejecting the event as malformed.
type NonRetryableError struct {
	err error
}

// NewNonRetryableError wraps err as terminal.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{err: err}
}

func (e NonRetryableError) Error() string {
	if e.err == nil {
		return "non-retryable push failure"
	}
	return e.err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.err
}
