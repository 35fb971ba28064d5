package actions

import (
	"context"
	"sync"
	"time"

	"github.com/appdock/appdock/internal/infrastructure/logging"
	"github.com/appdock/appdock/internal/shared/types"
	"go.uber.org/zap"
)

// System mutates the simulated installed-state database.
type System interface {
	Install(id string, ts int64)
	Uninstall(id string)
}

// Executor completes committed actions against the system state after a
// settle delay, standing in for a real package installer. Physical
// installation is out of scope; this keeps the service end-to-end live.
type Executor struct {
	log    *Manager
	system System
	settle time.Duration
	logger *logging.Logger

	mu      sync.Mutex
	handled map[string]struct{} // action IDs already picked up, protected by mu
}

// NewExecutor creates an executor over the action log and system state.
func NewExecutor(log *Manager, system System, settle time.Duration, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		log:     log,
		system:  system,
		settle:  settle,
		logger:  logger,
		handled: make(map[string]struct{}),
	}
}

// Run watches the action stream and completes committed actions. It returns
// when ctx is done.
func (x *Executor) Run(ctx context.Context) {
	for snapshot := range x.log.Observe(ctx) {
		for _, action := range snapshot {
			if action.Status != types.ActionCommitted {
				continue
			}
			if !x.claim(action.ID) {
				continue
			}
			go x.complete(ctx, action)
		}
	}
}

// claim marks an action as picked up exactly once.
func (x *Executor) claim(actionID string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.handled[actionID]; ok {
		return false
	}
	x.handled[actionID] = struct{}{}
	return true
}

// complete applies the action to the system state and marks it successful.
func (x *Executor) complete(ctx context.Context, action types.Action) {
	if x.settle > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(x.settle):
		}
	}

	switch action.Type {
	case types.ActionInstall:
		x.system.Install(action.ItemID, time.Now().Unix())
	case types.ActionUninstall:
		x.system.Uninstall(action.ItemID)
	}

	if _, err := x.log.Advance(action.ID, types.ActionSuccess); err != nil {
		// The action may have been cancelled while settling.
		x.logger.Warn("could not complete action",
			zap.String("action", action.ID),
			zap.Error(err))
		return
	}

	x.logger.Info("action completed",
		zap.String("action", action.ID),
		zap.String("item", action.ItemID),
		zap.String("type", string(action.Type)))
}
