package memutils

import "github.com/cockroachdb/errors"

// ErrNotPowerOfTwo is returned by CheckPow2
var ErrNotPowerOfTwo = errors.New("number must be a power of two")
