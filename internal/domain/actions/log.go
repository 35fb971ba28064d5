package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appdock/appdock/internal/infrastructure/logging"
	"github.com/appdock/appdock/internal/infrastructure/monitoring"
	"github.com/appdock/appdock/internal/shared/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrActionInFlight is returned when an item already has an unfinished action.
	ErrActionInFlight = errors.New("action already in flight for item")
	// ErrUnknownAction is returned when an action ID is not in the log.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidTransition is returned when a terminal action is advanced.
	ErrInvalidTransition = errors.New("action already terminal")
)

// Manager is an in-memory action log. It keeps the latest action per item
// and fans out a full snapshot to observers on every change.
type Manager struct {
	mu      sync.RWMutex
	current map[string]types.Action // latest action per item, protected by mu
	byID    map[string]string       // action ID -> item ID, protected by mu

	subMu   sync.Mutex
	subs    map[int]chan map[string]types.Action
	nextSub int

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewManager creates a new action log manager.
func NewManager(logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		current: make(map[string]types.Action),
		byID:    make(map[string]string),
		subs:    make(map[int]chan map[string]types.Action),
		logger:  logger,
	}
}

// WithMetrics adds metrics tracking to the manager.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Record begins a new lifecycle action for an item. A second action for the
// same item is rejected while the first is still in flight; a terminal
// action is superseded.
func (m *Manager) Record(itemID string, actionType types.ActionType) (types.Action, error) {
	m.mu.Lock()
	if cur, ok := m.current[itemID]; ok && cur.Status.InFlight() {
		m.mu.Unlock()
		return types.Action{}, fmt.Errorf("%w: %s", ErrActionInFlight, itemID)
	}

	now := time.Now()
	action := types.Action{
		ID:        uuid.New().String(),
		ItemID:    itemID,
		Type:      actionType,
		Status:    types.ActionInitialized,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev, ok := m.current[itemID]; ok {
		delete(m.byID, prev.ID)
	}
	m.current[itemID] = action
	m.byID[action.ID] = itemID
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordAction(string(actionType))
	}
	m.logger.Info("action recorded",
		zap.String("action", action.ID),
		zap.String("item", itemID),
		zap.String("type", string(actionType)))

	m.broadcast()
	return action, nil
}

// Advance moves an action to a new lifecycle status. Terminal actions
// cannot be advanced further.
func (m *Manager) Advance(actionID string, status types.ActionStatus) (types.Action, error) {
	m.mu.Lock()
	itemID, ok := m.byID[actionID]
	if !ok {
		m.mu.Unlock()
		return types.Action{}, fmt.Errorf("%w: %s", ErrUnknownAction, actionID)
	}
	action := m.current[itemID]
	if action.Status.Terminal() {
		m.mu.Unlock()
		return types.Action{}, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, actionID, action.Status)
	}
	action.Status = status
	action.UpdatedAt = time.Now()
	m.current[itemID] = action
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordAdvance(string(status))
	}
	m.logger.Info("action advanced",
		zap.String("action", actionID),
		zap.String("item", itemID),
		zap.String("status", string(status)))

	m.broadcast()
	return action, nil
}

// Get retrieves an action by ID.
func (m *Manager) Get(actionID string) (types.Action, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	itemID, ok := m.byID[actionID]
	if !ok {
		return types.Action{}, false
	}
	return m.current[itemID], true
}

// Snapshot returns a copy of the current action per item.
func (m *Manager) Snapshot() map[string]types.Action {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// snapshotLocked copies the current map. Caller holds mu.
func (m *Manager) snapshotLocked() map[string]types.Action {
	snapshot := make(map[string]types.Action, len(m.current))
	for id, action := range m.current {
		snapshot[id] = action
	}
	return snapshot
}

// Observe subscribes to the live action sequence. Every change emits a full
// snapshot; a slow consumer sees the latest snapshot rather than a backlog.
// The first emission is the current snapshot, delivered under subMu so a
// concurrent broadcast cannot slip between registration and the initial
// send. The subscription is released when ctx is done and the channel
// closed.
func (m *Manager) Observe(ctx context.Context) <-chan map[string]types.Action {
	ch := make(chan map[string]types.Action, 1)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.Snapshot()
	m.subMu.Unlock()

	go func() {
		<-ctx.Done()
		m.subMu.Lock()
		delete(m.subs, id)
		close(ch)
		m.subMu.Unlock()
	}()
	return ch
}

// broadcast fans the current snapshot out to all observers, replacing any
// undelivered older snapshot. The snapshot is taken while holding subMu so
// two racing broadcasts cannot deliver out of order: whichever fan-out runs
// last carries the newest state.
func (m *Manager) broadcast() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	m.mu.RLock()
	snapshot := m.snapshotLocked()
	m.mu.RUnlock()
	for _, ch := range m.subs {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// Stats returns log statistics.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]int{"total": len(m.current)}
	for _, action := range m.current {
		if action.Status.InFlight() {
			stats["in_flight"]++
		} else {
			stats["terminal"]++
		}
	}
	return stats
}
