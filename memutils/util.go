package memutils

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// CheckPow2 returns ErrNotPowerOfTwo, annotated with name, when number is not a power of two.
// Zero is accepted.
func CheckPow2[T constraints.Integer](number T, name string) error {
	if number&(number-1) != 0 {
		return errors.Wrapf(ErrNotPowerOfTwo, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the next multiple of alignment, which must be a power of two
func AlignUp[T constraints.Integer](value T, alignment T) T {
	return (value + alignment - 1) &^ (alignment - 1)
}
