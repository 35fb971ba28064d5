package types

import "time"

// ActionType represents the kind of lifecycle request
type ActionType string

const (
	ActionInstall   ActionType = "install"
	ActionUninstall ActionType = "uninstall"
)

// ActionStatus represents the progress of a lifecycle action
type ActionStatus string

const (
	ActionInitialized ActionStatus = "initialized"
	ActionPendingUser ActionStatus = "pending_user_action"
	ActionCommitted   ActionStatus = "committed"
	ActionSuccess     ActionStatus = "success"
	ActionFailure     ActionStatus = "failure"
	ActionCancelled   ActionStatus = "cancellation"
	ActionUnknown     ActionStatus = "unknown"
)

// InFlight reports whether the action is still being processed.
func (s ActionStatus) InFlight() bool {
	switch s {
	case ActionInitialized, ActionPendingUser, ActionCommitted:
		return true
	}
	return false
}

// Terminal reports whether the action has reached a final state.
func (s ActionStatus) Terminal() bool {
	return !s.InFlight()
}

// Action is a recorded lifecycle request against a catalog item
type Action struct {
	ID        string       `json:"id"`
	ItemID    string       `json:"item_id"`
	Type      ActionType   `json:"type"`
	Status    ActionStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
