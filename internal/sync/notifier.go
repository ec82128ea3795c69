package sync

// Notifier is the drain trigger handed to the capture service. The channel
// holds at most one pending signal, so a trigger arriving while a drain is
// active coalesces into "one more pass soon" instead of a second drain.
type Notifier struct {
	ch chan struct{}
}

// NewNotifier builds a coalescing trigger.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify requests a drain pass. Never blocks the caller.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// C exposes the signal channel to the sync loop.
func (n *Notifier) C() <-chan struct{} {
	return n.ch
}
