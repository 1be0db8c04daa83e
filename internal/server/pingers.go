package server

import (
	"context"
	"fmt"

	"github.com/ddunnock/sekb-go/internal/vecstore"
)

// StorePinger probes the selected vector store through its health check.
// It satisfies the Pinger interface and is used by GET /api/ready. The
// probe is read-only: a failed readiness check reports the store as down
// but never re-runs store selection.
type StorePinger struct {
	// store is the selected vector store to probe.
	store vecstore.VectorStore
}

// NewStorePinger constructs a StorePinger for the given store.
func NewStorePinger(store vecstore.VectorStore) *StorePinger {
	return &StorePinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return p.store.Name() }

// Ping runs the store's liveness probe.
func (p *StorePinger) Ping(ctx context.Context) error {
	if !p.store.HealthCheck(ctx) {
		return fmt.Errorf("%s store failed its health probe", p.store.Name())
	}
	return nil
}
