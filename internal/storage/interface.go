// Package storage persists ledger state as one JSON value per key, the same
// layout the tracker used in browser local storage.
package storage

import (
	"fmt"
	"strings"
)

// KV is a string-keyed byte store.
//
// Implementations must be safe for concurrent use. Get reports found=false
// for a missing key rather than an error.
type KV interface {
	Get(key string) (value []byte, found bool, err error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Persisted keys
const (
	KeyAccounts        = "accounts"
	KeyPositions       = "positions"
	KeyClosedPositions = "closedPositions"
	KeyPLHistory       = "plHistory"
	KeyManualWatchlist = "manualWatchlist"
	KeyPriceAlerts     = "priceAlerts"
	KeyAPIProvider     = "apiProvider"
	KeyAPIKeys         = "apiKeys"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open creates the KV backend named by backend. path is ignored for memory.
func Open(backend, path string) (KV, error) {
	switch strings.ToLower(backend) {
	case BackendFile, "":
		return NewFileKV(path)
	case BackendSQLite:
		return NewSQLiteKV(path)
	case BackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Ensure all backends implement KV
var (
	_ KV = (*FileKV)(nil)
	_ KV = (*SQLiteKV)(nil)
	_ KV = (*MemoryKV)(nil)
)
