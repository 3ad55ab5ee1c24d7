//go:build !darwin

package audio

// newSourceImpl returns ErrUnsupported on platforms without an
// implementation.
func newSourceImpl() (sourceImpl, error) {
	return nil, ErrUnsupported
}
