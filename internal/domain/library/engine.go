package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appdock/appdock/internal/domain/catalog"
	"github.com/appdock/appdock/internal/infrastructure/logging"
	"github.com/appdock/appdock/internal/infrastructure/monitoring"
	"github.com/appdock/appdock/internal/shared/types"
	"go.uber.org/zap"
)

// ErrQueryUnavailable signals that the installed-state query could not
// serve a full scan. The previously published view stays authoritative.
var ErrQueryUnavailable = errors.New("installed-state query unavailable")

// ActionLog emits full snapshots of the current action per item ID. The log
// is responsible for exposing at most one current action per item; the
// engine does not resolve concurrent actions for the same item.
type ActionLog interface {
	Observe(ctx context.Context) <-chan map[string]types.Action
}

// InstalledQuery is the authoritative installed-state of the host system.
// A missing ID is a normal negative result, not an error.
type InstalledQuery interface {
	Installed(ctx context.Context, id string) (ts int64, found bool, err error)
	ListInstalled(ctx context.Context) (map[string]int64, error)
}

// refreshState tracks one in-flight cold refresh so concurrent callers can
// wait on its outcome. err is written before done is closed.
type refreshState struct {
	done chan struct{}
	err  error
}

// Engine reconciles catalog, action log, and installed state into a live,
// sorted library view. It is explicitly constructed and owned; there is no
// process-wide singleton.
type Engine struct {
	catalog *catalog.Catalog
	log     ActionLog
	query   InstalledQuery
	logger  *logging.Logger
	metrics *monitoring.Metrics

	// pubMu orders state commits with their publication: whoever commits a
	// snapshot publishes it before the next commit happens, so observers
	// never end up holding an older view than the engine's current one.
	// The merge itself runs under pubMu but outside mu, keeping readers
	// unblocked during slow installed-state lookups.
	pubMu sync.Mutex

	mu          sync.RWMutex
	base        map[string]types.EffectiveItem // resolved facts, protected by mu
	lastActions map[string]types.Action        // latest action snapshot, protected by mu
	current     Snapshot                       // last published view, protected by mu

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int

	refreshMu sync.Mutex
	inflight  *refreshState // current cold refresh, protected by refreshMu
}

// NewEngine creates an engine seeded from the catalog: every item starts
// uninstalled with no known install time.
func NewEngine(cat *catalog.Catalog, log ActionLog, query InstalledQuery, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}

	base := make(map[string]types.EffectiveItem, cat.Len())
	for _, item := range cat.Items() {
		base[item.ID] = types.EffectiveItem{
			Item:      item,
			Status:    types.StatusUninstalled,
			UpdatedAt: types.NeverInstalled,
		}
	}

	e := &Engine{
		catalog: cat,
		log:     log,
		query:   query,
		logger:  logger,
		base:    base,
		subs:    make(map[int]chan Snapshot),
	}
	e.current = toSnapshot(base)
	return e
}

// WithMetrics adds metrics tracking to the engine.
func (e *Engine) WithMetrics(metrics *monitoring.Metrics) *Engine {
	e.metrics = metrics
	return e
}

// Run subscribes to the action log and republishes a merged view on every
// emission. It returns when ctx is done or the log stream closes.
func (e *Engine) Run(ctx context.Context) {
	actions := e.log.Observe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-actions:
			if !ok {
				e.logger.Warn("action log stream closed")
				return
			}
			e.apply(ctx, snapshot)
		}
	}
}

// apply merges one action log emission, commits it, and publishes the
// result. The base map is replaced wholesale on commit and never mutated in
// place, so reading its reference outside mu is safe.
func (e *Engine) apply(ctx context.Context, actions map[string]types.Action) {
	start := time.Now()

	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	e.mu.RLock()
	base := e.base
	e.mu.RUnlock()

	view, next := Merge(ctx, e.catalog, base, actions, e.query)
	snap := toSnapshot(view)

	e.mu.Lock()
	e.lastActions = actions
	e.base = next
	e.current = snap
	e.mu.Unlock()

	e.publish(snap)

	if e.metrics != nil {
		e.metrics.RecordMerge(time.Since(start))
		e.metrics.SetLibraryStatus(statusCounts(snap))
	}
	e.logger.Debug("library view merged",
		zap.Int("items", len(snap)),
		zap.Int("actions", len(actions)))
}

// Refresh performs a cold full scan of installed state, cross-referenced
// against the catalog only: the action log is intentionally ignored so the
// result is an authoritative snapshot of what the system actually reports.
// The scan result replaces the engine's base state and is immediately
// republished merged with the latest action snapshot.
//
// At most one scan is in flight per engine; a concurrent call waits for the
// running one and returns its outcome, so every caller returns only after a
// cold snapshot has been published (or the scan failed). Cancellation before
// commit leaves the prior published view authoritative.
func (e *Engine) Refresh(ctx context.Context) error {
	e.refreshMu.Lock()
	if inflight := e.inflight; inflight != nil {
		e.refreshMu.Unlock()
		select {
		case <-inflight.done:
			return inflight.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	state := &refreshState{done: make(chan struct{})}
	e.inflight = state
	e.refreshMu.Unlock()

	state.err = e.coldRefresh(ctx)

	e.refreshMu.Lock()
	e.inflight = nil
	e.refreshMu.Unlock()
	close(state.done)
	return state.err
}

// coldRefresh runs one scan-and-republish cycle. The scan itself runs
// outside pubMu so live merges proceed while the system is being scanned;
// only the rebuild, commit, and publication are ordered.
func (e *Engine) coldRefresh(ctx context.Context) error {
	start := time.Now()
	installed, err := e.query.ListInstalled(ctx)
	if e.metrics != nil {
		e.metrics.RecordRefresh(time.Since(start), err)
	}
	if err != nil {
		e.logger.Error("cold refresh failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrQueryUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	base := make(map[string]types.EffectiveItem, e.catalog.Len())
	for _, item := range e.catalog.Items() {
		eff := types.EffectiveItem{
			Item:      item,
			Status:    types.StatusUninstalled,
			UpdatedAt: types.NeverInstalled,
		}
		if ts, ok := installed[item.ID]; ok && ts > types.NeverInstalled {
			eff.Status = types.StatusInstalled
			eff.UpdatedAt = ts
		}
		base[item.ID] = eff
	}

	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	e.mu.RLock()
	actions := e.lastActions
	e.mu.RUnlock()

	view, next := Merge(ctx, e.catalog, base, actions, e.query)
	snap := toSnapshot(view)

	e.mu.Lock()
	e.base = next
	e.current = snap
	e.mu.Unlock()

	e.publish(snap)

	e.logger.Info("cold refresh published",
		zap.Int("installed", len(installed)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Current returns a copy of the last published view.
func (e *Engine) Current() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := make(Snapshot, len(e.current))
	copy(snap, e.current)
	return snap
}

// Get returns the current effective item for one ID.
func (e *Engine) Get(id string) (types.EffectiveItem, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.Get(id)
}

// Observe subscribes to the live view. Each subscriber holds a buffer of
// one snapshot; a slow consumer sees the latest view, not a backlog, since
// intermediate merge results are not independently meaningful. The first
// emission is the current view, delivered under subMu so a concurrent
// publication cannot slip between registration and the initial send. The
// subscription is released when ctx is done and the channel closed.
func (e *Engine) Observe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	ch <- e.Current()
	e.subMu.Unlock()

	if e.metrics != nil {
		e.metrics.Observers.Inc()
	}

	go func() {
		<-ctx.Done()
		e.subMu.Lock()
		delete(e.subs, id)
		close(ch)
		e.subMu.Unlock()
		if e.metrics != nil {
			e.metrics.Observers.Dec()
		}
	}()
	return ch
}

// publish fans a snapshot out to all subscribers, replacing any undelivered
// older snapshot rather than blocking or queueing unboundedly. Callers hold
// pubMu, so fan-out order matches commit order.
func (e *Engine) publish(snap Snapshot) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot, then deliver the latest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// statusCounts tallies items per derived status for the metrics gauge.
// Every status is present so counts that drop to zero reset the gauge.
func statusCounts(snap Snapshot) map[string]int {
	counts := map[string]int{
		string(types.StatusInstalled):    0,
		string(types.StatusInstalling):   0,
		string(types.StatusUninstalling): 0,
		string(types.StatusUninstalled):  0,
	}
	for _, eff := range snap {
		counts[string(eff.Status)]++
	}
	return counts
}
