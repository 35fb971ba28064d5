package catalog

import (
	"context"

	"github.com/appdock/appdock/internal/shared/types"
)

// Source provides catalog items from a backing store.
type Source interface {
	Load(ctx context.Context) ([]types.Item, error)
}

// StaticSource serves a fixed in-memory item list.
type StaticSource struct {
	items []types.Item
}

// NewStaticSource creates a source over the given items.
func NewStaticSource(items []types.Item) *StaticSource {
	return &StaticSource{items: items}
}

// Load returns a copy of the static item list.
func (s *StaticSource) Load(ctx context.Context) ([]types.Item, error) {
	items := make([]types.Item, len(s.items))
	copy(items, s.items)
	return items, nil
}

// DefaultItems returns the built-in seed catalog used when no directory or
// remote index is configured.
func DefaultItems() []types.Item {
	return []types.Item{
		{ID: "calculator", Name: "Calculator", Publisher: "Appdock", Icon: "🧮"},
		{ID: "notes", Name: "Notes", Publisher: "Appdock", Icon: "📝"},
		{ID: "terminal", Name: "Terminal", Publisher: "Appdock", Icon: "💻"},
		{ID: "file-explorer", Name: "File Explorer", Publisher: "Appdock", Icon: "📁"},
		{ID: "task-manager", Name: "Task Manager", Publisher: "Appdock", Icon: "📊"},
		{ID: "music-player", Name: "Music Player", Publisher: "Nightshade Audio", Icon: "🎵"},
		{ID: "photo-viewer", Name: "Photo Viewer", Publisher: "Lumen Labs", Icon: "🖼️"},
		{ID: "weather", Name: "Weather", Publisher: "Stratus Works", Icon: "🌤️"},
	}
}
