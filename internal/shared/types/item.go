package types

// Status represents the derived install state of a library item
type Status string

const (
	StatusInstalled    Status = "installed"
	StatusInstalling   Status = "installing"
	StatusUninstalling Status = "uninstalling"
	StatusUninstalled  Status = "uninstalled"
)

// NeverInstalled is the timestamp carried by items with no known install time.
const NeverInstalled int64 = -1

// Item is a catalog entry. Immutable once loaded.
type Item struct {
	ID        string `json:"id" yaml:"id" toml:"id"`
	Name      string `json:"name" yaml:"name" toml:"name"`
	Publisher string `json:"publisher" yaml:"publisher" toml:"publisher"`
	Icon      string `json:"icon" yaml:"icon" toml:"icon"`
}

// EffectiveItem is an item plus its reconciled status and last-update time.
// UpdatedAt is unix seconds; NeverInstalled means the item has no known
// install record.
type EffectiveItem struct {
	Item
	Status    Status `json:"status"`
	UpdatedAt int64  `json:"updated_at"`
}
