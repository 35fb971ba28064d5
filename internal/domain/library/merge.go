package library

import (
	"context"
	"sort"

	"github.com/appdock/appdock/internal/domain/catalog"
	"github.com/appdock/appdock/internal/shared/types"
)

// Snapshot is one fully-formed published library view, sorted by item ID.
type Snapshot []types.EffectiveItem

// Get returns the effective item with the given ID.
func (s Snapshot) Get(id string) (types.EffectiveItem, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i].ID >= id })
	if i < len(s) && s[i].ID == id {
		return s[i], true
	}
	return types.EffectiveItem{}, false
}

// Merge derives the library view for every catalog entry from the latest
// action snapshot, the engine's base state, and the installed-state query.
//
// It returns the view to publish and the next base state. The base carries
// only resolved facts (installed@ts / uninstalled); transient in-flight
// statuses are an overlay on the view and never feed back, so a failed or
// cancelled action falls through to whatever the base and the system query
// say.
//
// Per-item lookup failures are treated as "not installed": absence is a
// normal negative result. The base entry is kept in that case, so a known
// state never regresses to the default.
func Merge(
	ctx context.Context,
	cat *catalog.Catalog,
	base map[string]types.EffectiveItem,
	actions map[string]types.Action,
	query InstalledQuery,
) (view, next map[string]types.EffectiveItem) {
	view = make(map[string]types.EffectiveItem, cat.Len())
	next = make(map[string]types.EffectiveItem, cat.Len())

	for _, item := range cat.Items() {
		eff := types.EffectiveItem{
			Item:      item,
			Status:    types.StatusUninstalled,
			UpdatedAt: types.NeverInstalled,
		}
		if prev, ok := base[item.ID]; ok {
			eff = prev
			eff.Item = item
		}

		action, hasAction := actions[item.ID]
		switch {
		case hasAction && action.Status.InFlight():
			// An in-flight action outranks whatever the system reports:
			// the system view may lag a transaction still being committed.
			overlay := eff
			if action.Type == types.ActionInstall {
				overlay.Status = types.StatusInstalling
			} else {
				overlay.Status = types.StatusUninstalling
			}
			view[item.ID] = overlay
			next[item.ID] = eff
			continue

		case hasAction && action.Type == types.ActionUninstall && action.Status == types.ActionSuccess:
			// A completed uninstall is trusted over the system query, which
			// can be stale about removals.
			eff.Status = types.StatusUninstalled
			eff.UpdatedAt = types.NeverInstalled

		default:
			if ts, ok, err := query.Installed(ctx, item.ID); err == nil && ok && ts > types.NeverInstalled {
				eff.Status = types.StatusInstalled
				eff.UpdatedAt = ts
			}
			// Absent or failed lookups keep the prior derived state.
		}

		view[item.ID] = eff
		next[item.ID] = eff
	}
	return view, next
}

// toSnapshot flattens a derived mapping into a sorted snapshot.
func toSnapshot(view map[string]types.EffectiveItem) Snapshot {
	snap := make(Snapshot, 0, len(view))
	for _, eff := range view {
		snap = append(snap, eff)
	}
	sort.Slice(snap, func(i, j int) bool { return snap[i].ID < snap[j].ID })
	return snap
}
