package storage

import "fmt"

// Backend selects a Store implementation
type Backend string

const (
	BackendBolt   Backend = "bolt"
	BackendMemory Backend = "memory"
)

// NewStore creates a Store for the given backend. BackendBolt requires
// a data directory; BackendMemory ignores it.
func NewStore(backend Backend, dataDir string) (Store, error) {
	switch backend {
	case BackendBolt:
		if dataDir == "" {
			return nil, fmt.Errorf("bolt backend requires a data directory")
		}
		return NewBoltStore(dataDir)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", backend)
	}
}
