package actions

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/appdock/appdock/internal/shared/types"
)

func TestRecord(t *testing.T) {
	m := NewManager(nil)

	act, err := m.Record("notes", types.ActionInstall)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if act.Status != types.ActionInitialized {
		t.Errorf("expected initialized, got %s", act.Status)
	}
	if act.ItemID != "notes" || act.Type != types.ActionInstall {
		t.Errorf("unexpected action: %+v", act)
	}
	if act.ID == "" {
		t.Error("expected generated action id")
	}
}

func TestRecordRejectsConcurrentAction(t *testing.T) {
	m := NewManager(nil)

	if _, err := m.Record("notes", types.ActionInstall); err != nil {
		t.Fatalf("record: %v", err)
	}
	_, err := m.Record("notes", types.ActionUninstall)
	if !errors.Is(err, ErrActionInFlight) {
		t.Fatalf("expected ErrActionInFlight, got %v", err)
	}
}

func TestRecordSupersedesTerminalAction(t *testing.T) {
	m := NewManager(nil)

	first, _ := m.Record("notes", types.ActionInstall)
	if _, err := m.Advance(first.ID, types.ActionSuccess); err != nil {
		t.Fatalf("advance: %v", err)
	}

	second, err := m.Record("notes", types.ActionUninstall)
	if err != nil {
		t.Fatalf("record after terminal: %v", err)
	}

	// The old action is no longer addressable; the snapshot holds the new one.
	if _, ok := m.Get(first.ID); ok {
		t.Error("superseded action still addressable")
	}
	if cur := m.Snapshot()["notes"]; cur.ID != second.ID {
		t.Errorf("expected current action %s, got %s", second.ID, cur.ID)
	}
}

func TestAdvance(t *testing.T) {
	m := NewManager(nil)
	act, _ := m.Record("notes", types.ActionInstall)

	for _, status := range []types.ActionStatus{types.ActionPendingUser, types.ActionCommitted, types.ActionSuccess} {
		updated, err := m.Advance(act.ID, status)
		if err != nil {
			t.Fatalf("advance to %s: %v", status, err)
		}
		if updated.Status != status {
			t.Errorf("expected %s, got %s", status, updated.Status)
		}
	}

	// Terminal actions cannot move again.
	if _, err := m.Advance(act.ID, types.ActionFailure); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAdvanceUnknownAction(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Advance("nope", types.ActionCommitted); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

func TestObserveEmitsSnapshots(t *testing.T) {
	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := m.Observe(ctx)

	// First emission is the (empty) current snapshot.
	select {
	case snapshot := <-ch:
		if len(snapshot) != 0 {
			t.Errorf("expected empty initial snapshot, got %d entries", len(snapshot))
		}
	case <-time.After(time.Second):
		t.Fatal("no initial emission")
	}

	act, _ := m.Record("notes", types.ActionInstall)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snapshot := <-ch:
			if cur, ok := snapshot["notes"]; ok && cur.ID == act.ID {
				return
			}
		case <-deadline:
			t.Fatal("recorded action never observed")
		}
	}
}

func TestObserveDeliversLatestUnderConcurrentWriters(t *testing.T) {
	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := m.Observe(ctx)

	// Racing recorders and advancers must never leave an observer holding
	// an older snapshot than the manager's current state.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			act, err := m.Record(fmt.Sprintf("item-%d", n), types.ActionInstall)
			if err != nil {
				t.Errorf("record: %v", err)
				return
			}
			if _, err := m.Advance(act.ID, types.ActionCommitted); err != nil {
				t.Errorf("advance: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// All broadcasts completed before Record/Advance returned, so the
	// channel holds exactly the newest snapshot.
	var last map[string]types.Action
	for {
		select {
		case snapshot := <-ch:
			last = snapshot
		default:
			if !reflect.DeepEqual(last, m.Snapshot()) {
				t.Errorf("observer holds stale snapshot:\n got %+v\nwant %+v", last, m.Snapshot())
			}
			return
		}
	}
}

func TestStats(t *testing.T) {
	m := NewManager(nil)
	a, _ := m.Record("notes", types.ActionInstall)
	m.Record("terminal", types.ActionInstall)
	m.Advance(a.ID, types.ActionFailure)

	stats := m.Stats()
	if stats["total"] != 2 || stats["in_flight"] != 1 || stats["terminal"] != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
