package storage

import "fmt"

// NewStore builds the session store backend for the given kind. The empty
// kind maps to the in-memory store.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported session store backend: %s", kind)
	}
}

// CloseIfSupported closes backends that hold external resources; the
// in-memory store has none and passes through.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
