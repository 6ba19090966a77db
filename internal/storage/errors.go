package storage

import "errors"

// ErrUnknownBackend is returned by Open for an unsupported backend name
var ErrUnknownBackend = errors.New("unknown storage backend")

// ErrCorruptFile is returned when the backing JSON document cannot be parsed as a whole
var ErrCorruptFile = errors.New("storage file is corrupt")
