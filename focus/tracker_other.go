//go:build !darwin

package focus

// NewTracker returns ErrUnsupported on platforms without an implementation.
func NewTracker() (Tracker, error) {
	return nil, ErrUnsupported
}
