package staging

import "github.com/cockroachdb/errors"

// ErrOutOfRange is returned by Buffer.Write when offset+len(data) runs past the end of
// the buffer
var ErrOutOfRange = errors.New("write runs past the end of the staging buffer")

// ErrBackendCreation marks failures to create the backend buffer behind a staging buffer.
// The device refusing to allocate has no recovery path, so callers treat it as fatal.
var ErrBackendCreation = errors.New("failed to create backend buffer")

// ErrDestroyed is returned when a destroyed staging buffer is used
var ErrDestroyed = errors.New("staging buffer has been destroyed")
