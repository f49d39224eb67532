package memutils

// Validatable is used by the DebugValidate method to allow it to act upon
// all types with a Validate method. Arenas and handle registries
// implement it.
type Validatable interface {
	Validate() error
}
