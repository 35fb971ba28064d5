package installed

import (
	"context"
	"sync"

	"github.com/appdock/appdock/internal/infrastructure/logging"
	"github.com/appdock/appdock/internal/shared/types"
	"go.uber.org/zap"
)

// Provider simulates the host's package database. It implements the
// library engine's InstalledQuery contract and exposes mutators so the API
// surface and tests can drive system state.
type Provider struct {
	mu      sync.RWMutex
	records map[string]int64 // item ID -> install time, protected by mu
	scanErr error            // forced bulk-scan failure, protected by mu
	logger  *logging.Logger
}

// NewProvider creates an empty installed-state provider.
func NewProvider(logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Provider{
		records: make(map[string]int64),
		logger:  logger,
	}
}

// Installed reports whether an item is installed and when it was last
// updated. A missing ID is a normal negative result, not an error.
func (p *Provider) Installed(ctx context.Context, id string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.NeverInstalled, false, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	ts, ok := p.records[id]
	if !ok {
		return types.NeverInstalled, false, nil
	}
	return ts, true, nil
}

// ListInstalled returns a copy of every installed record. An empty result
// means nothing is installed.
func (p *Provider) ListInstalled(ctx context.Context) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.scanErr != nil {
		return nil, p.scanErr
	}

	records := make(map[string]int64, len(p.records))
	for id, ts := range p.records {
		records[id] = ts
	}
	return records, nil
}

// Install records an item as installed at the given time.
func (p *Provider) Install(id string, ts int64) {
	p.mu.Lock()
	p.records[id] = ts
	p.mu.Unlock()
	p.logger.Debug("system state: installed", zap.String("item", id), zap.Int64("ts", ts))
}

// Uninstall removes an item's install record. Removing an absent item is a
// no-op.
func (p *Provider) Uninstall(id string) {
	p.mu.Lock()
	delete(p.records, id)
	p.mu.Unlock()
	p.logger.Debug("system state: uninstalled", zap.String("item", id))
}

// SetUnavailable makes bulk scans fail with the given error until cleared
// with nil. Per-item lookups keep working; only ListInstalled is affected.
func (p *Provider) SetUnavailable(err error) {
	p.mu.Lock()
	p.scanErr = err
	p.mu.Unlock()
}
