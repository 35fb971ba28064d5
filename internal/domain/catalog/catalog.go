package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/appdock/appdock/internal/shared/types"
)

// ErrDuplicateItem is returned when a source yields two items with the same ID.
// Duplicates violate the 1:1 key set invariant and are fatal at load time.
var ErrDuplicateItem = errors.New("duplicate item id")

// Catalog is an immutable mapping from item ID to item, sorted by ID.
type Catalog struct {
	items map[string]types.Item
	ids   []string // sorted
}

// New builds a catalog from a list of items. Duplicate or empty IDs are
// rejected rather than deduplicated.
func New(items []types.Item) (*Catalog, error) {
	m := make(map[string]types.Item, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("catalog item %q has empty id", item.Name)
		}
		if _, exists := m[item.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, item.ID)
		}
		m[item.ID] = item
		ids = append(ids, item.ID)
	}
	sort.Strings(ids)
	return &Catalog{items: m, ids: ids}, nil
}

// Load builds a catalog from a source.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	items, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return New(items)
}

// Get retrieves an item by ID.
func (c *Catalog) Get(id string) (types.Item, bool) {
	item, ok := c.items[id]
	return item, ok
}

// Items returns all items sorted by ID.
func (c *Catalog) Items() []types.Item {
	items := make([]types.Item, 0, len(c.ids))
	for _, id := range c.ids {
		items = append(items, c.items[id])
	}
	return items
}

// IDs returns all item IDs in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.ids))
	copy(ids, c.ids)
	return ids
}

// Len returns the number of items in the catalog.
func (c *Catalog) Len() int {
	return len(c.ids)
}
