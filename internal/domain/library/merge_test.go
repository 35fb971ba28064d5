package library

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/appdock/appdock/internal/domain/catalog"
	"github.com/appdock/appdock/internal/shared/types"
)

type stubQuery struct {
	installed   map[string]int64
	lookupErr   error
	scanErr     error
	block       chan struct{} // when set, ListInstalled waits on it
	lookupBlock chan struct{} // when set, Installed waits on it
}

func (q *stubQuery) Installed(ctx context.Context, id string) (int64, bool, error) {
	if q.lookupBlock != nil {
		select {
		case <-q.lookupBlock:
		case <-ctx.Done():
			return types.NeverInstalled, false, ctx.Err()
		}
	}
	if q.lookupErr != nil {
		return types.NeverInstalled, false, q.lookupErr
	}
	ts, ok := q.installed[id]
	if !ok {
		return types.NeverInstalled, false, nil
	}
	return ts, true, nil
}

func (q *stubQuery) ListInstalled(ctx context.Context) (map[string]int64, error) {
	if q.block != nil {
		select {
		case <-q.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if q.scanErr != nil {
		return nil, q.scanErr
	}
	records := make(map[string]int64, len(q.installed))
	for id, ts := range q.installed {
		records[id] = ts
	}
	return records, nil
}

func mustCatalog(t *testing.T, ids ...string) *catalog.Catalog {
	t.Helper()
	items := make([]types.Item, len(ids))
	for i, id := range ids {
		items[i] = types.Item{ID: id, Name: id}
	}
	cat, err := catalog.New(items)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func action(itemID string, typ types.ActionType, status types.ActionStatus) types.Action {
	return types.Action{ID: "act-" + itemID, ItemID: itemID, Type: typ, Status: status}
}

func TestMergeInFlightInstallWins(t *testing.T) {
	cat := mustCatalog(t, "a", "b")
	actions := map[string]types.Action{
		"a": action("a", types.ActionInstall, types.ActionCommitted),
	}
	query := &stubQuery{installed: map[string]int64{"a": 50, "b": 100}}

	view, _ := Merge(context.Background(), cat, nil, actions, query)

	if view["a"].Status != types.StatusInstalling {
		t.Errorf("expected a installing, got %s", view["a"].Status)
	}
	if view["b"].Status != types.StatusInstalled || view["b"].UpdatedAt != 100 {
		t.Errorf("expected b installed@100, got %s@%d", view["b"].Status, view["b"].UpdatedAt)
	}
}

func TestMergeInFlightUninstall(t *testing.T) {
	cat := mustCatalog(t, "a")
	actions := map[string]types.Action{
		"a": action("a", types.ActionUninstall, types.ActionPendingUser),
	}
	query := &stubQuery{installed: map[string]int64{"a": 50}}

	view, _ := Merge(context.Background(), cat, nil, actions, query)

	if view["a"].Status != types.StatusUninstalling {
		t.Errorf("expected uninstalling, got %s", view["a"].Status)
	}
}

func TestMergeUninstallSuccessOverridesQuery(t *testing.T) {
	cat := mustCatalog(t, "a")
	base := map[string]types.EffectiveItem{
		"a": {Item: types.Item{ID: "a"}, Status: types.StatusInstalled, UpdatedAt: 100},
	}
	actions := map[string]types.Action{
		"a": action("a", types.ActionUninstall, types.ActionSuccess),
	}
	// The system query has not caught up and still reports a installed.
	query := &stubQuery{installed: map[string]int64{"a": 100}}

	view, next := Merge(context.Background(), cat, base, actions, query)

	if view["a"].Status != types.StatusUninstalled || view["a"].UpdatedAt != types.NeverInstalled {
		t.Errorf("expected uninstalled@-1, got %s@%d", view["a"].Status, view["a"].UpdatedAt)
	}
	if next["a"].Status != types.StatusUninstalled {
		t.Errorf("expected base updated to uninstalled, got %s", next["a"].Status)
	}
}

func TestMergeNoActionDefersToQuery(t *testing.T) {
	cat := mustCatalog(t, "a")
	query := &stubQuery{installed: map[string]int64{"a": 42}}

	view, _ := Merge(context.Background(), cat, nil, nil, query)

	if view["a"].Status != types.StatusInstalled || view["a"].UpdatedAt != 42 {
		t.Errorf("expected installed@42, got %s@%d", view["a"].Status, view["a"].UpdatedAt)
	}
}

func TestMergeEmptyEverything(t *testing.T) {
	cat := mustCatalog(t, "a", "b", "c")
	query := &stubQuery{}

	view, _ := Merge(context.Background(), cat, nil, nil, query)

	for id, eff := range view {
		if eff.Status != types.StatusUninstalled || eff.UpdatedAt != types.NeverInstalled {
			t.Errorf("item %s: expected uninstalled@-1, got %s@%d", id, eff.Status, eff.UpdatedAt)
		}
	}
}

func TestMergeKeySetEqualsCatalog(t *testing.T) {
	cat := mustCatalog(t, "a", "b", "c")
	actions := map[string]types.Action{
		"b":        action("b", types.ActionInstall, types.ActionCommitted),
		"offbook":  action("offbook", types.ActionInstall, types.ActionCommitted),
		"sideload": action("sideload", types.ActionUninstall, types.ActionSuccess),
	}
	// The system also reports an item outside the catalog.
	query := &stubQuery{installed: map[string]int64{"sideload": 7, "c": 9}}

	view, _ := Merge(context.Background(), cat, nil, actions, query)

	if len(view) != cat.Len() {
		t.Fatalf("expected %d items, got %d", cat.Len(), len(view))
	}
	for _, id := range cat.IDs() {
		if _, ok := view[id]; !ok {
			t.Errorf("missing catalog item %s", id)
		}
	}
	if _, ok := view["offbook"]; ok {
		t.Error("item outside catalog surfaced in view")
	}
}

func TestMergeKeepsPriorStateOnLookupFailure(t *testing.T) {
	cat := mustCatalog(t, "a")
	base := map[string]types.EffectiveItem{
		"a": {Item: types.Item{ID: "a"}, Status: types.StatusInstalled, UpdatedAt: 100},
	}
	query := &stubQuery{lookupErr: errors.New("query offline")}

	view, _ := Merge(context.Background(), cat, base, nil, query)

	if view["a"].Status != types.StatusInstalled || view["a"].UpdatedAt != 100 {
		t.Errorf("expected prior installed@100 kept, got %s@%d", view["a"].Status, view["a"].UpdatedAt)
	}
}

func TestMergeFailedActionFallsThrough(t *testing.T) {
	cat := mustCatalog(t, "a")

	// Failed install with nothing installed: back to default.
	view, _ := Merge(context.Background(), cat, nil, map[string]types.Action{
		"a": action("a", types.ActionInstall, types.ActionFailure),
	}, &stubQuery{})
	if view["a"].Status != types.StatusUninstalled {
		t.Errorf("expected uninstalled after failed install, got %s", view["a"].Status)
	}

	// Cancelled uninstall with the item still installed: query wins.
	view, _ = Merge(context.Background(), cat, nil, map[string]types.Action{
		"a": action("a", types.ActionUninstall, types.ActionCancelled),
	}, &stubQuery{installed: map[string]int64{"a": 7}})
	if view["a"].Status != types.StatusInstalled || view["a"].UpdatedAt != 7 {
		t.Errorf("expected installed@7 after cancelled uninstall, got %s@%d", view["a"].Status, view["a"].UpdatedAt)
	}
}

func TestMergeInFlightStatusDoesNotFeedBack(t *testing.T) {
	cat := mustCatalog(t, "a")
	query := &stubQuery{}

	_, next := Merge(context.Background(), cat, nil, map[string]types.Action{
		"a": action("a", types.ActionInstall, types.ActionCommitted),
	}, query)
	if next["a"].Status != types.StatusUninstalled {
		t.Fatalf("transient status leaked into base: %s", next["a"].Status)
	}

	// The install fails; the derived state falls back to the base, not to
	// the previously displayed "installing".
	view, _ := Merge(context.Background(), cat, next, map[string]types.Action{
		"a": action("a", types.ActionInstall, types.ActionFailure),
	}, query)
	if view["a"].Status != types.StatusUninstalled {
		t.Errorf("expected uninstalled after failure, got %s", view["a"].Status)
	}
}

func TestMergeDeterministicAndSorted(t *testing.T) {
	cat := mustCatalog(t, "delta", "alpha", "charlie", "bravo")
	actions := map[string]types.Action{
		"alpha": action("alpha", types.ActionInstall, types.ActionCommitted),
	}
	query := &stubQuery{installed: map[string]int64{"charlie": 33}}

	first, _ := Merge(context.Background(), cat, nil, actions, query)
	second, _ := Merge(context.Background(), cat, nil, actions, query)

	snapA, snapB := toSnapshot(first), toSnapshot(second)
	if !reflect.DeepEqual(snapA, snapB) {
		t.Error("merge is not deterministic for identical inputs")
	}
	for i := 1; i < len(snapA); i++ {
		if snapA[i-1].ID >= snapA[i].ID {
			t.Fatalf("snapshot not sorted: %s before %s", snapA[i-1].ID, snapA[i].ID)
		}
	}
}
