//go:build !darwin

package inject

import "errors"

// ErrUnsupported is returned on platforms without synthetic input support.
var ErrUnsupported = errors.New("inject: not supported on this platform")

func newOps() (ops, error) {
	return nil, ErrUnsupported
}
