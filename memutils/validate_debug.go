//go:build debug_mem_utils

package memutils

import "golang.org/x/exp/constraints"

// DebugValidate runs the object's consistency check and panics on the first failure.
// Arenas call it after every release when built with debug_mem_utils.
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckPow2 panics if value is not a power of two
func DebugCheckPow2[T constraints.Integer](value T, name string) {
	err := CheckPow2(value, name)
	if err != nil {
		panic(err)
	}
}
