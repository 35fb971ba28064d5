package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/appdock/appdock/internal/infrastructure/logging"
	"github.com/appdock/appdock/internal/shared/types"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// manifestPattern matches item manifest files anywhere under the catalog dir.
const manifestPattern = "**/*.{json,yaml,yml,toml}"

// FileSource loads items from a directory of manifest files. Each manifest
// describes a single item; the format is selected by file extension.
type FileSource struct {
	dir    string
	logger *logging.Logger
}

// NewFileSource creates a source over a manifest directory.
func NewFileSource(dir string, logger *logging.Logger) *FileSource {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileSource{dir: dir, logger: logger}
}

// Load walks the catalog directory and decodes every manifest it finds.
// A malformed manifest is fatal: the catalog must be fully formed at startup.
func (s *FileSource) Load(ctx context.Context) ([]types.Item, error) {
	if _, err := os.Stat(s.dir); err != nil {
		return nil, fmt.Errorf("catalog directory %s: %w", s.dir, err)
	}

	var items []types.Item
	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		match, err := doublestar.Match(manifestPattern, filepath.ToSlash(rel))
		if err != nil || !match {
			return err
		}

		item, err := decodeManifest(path)
		if err != nil {
			return fmt.Errorf("manifest %s: %w", rel, err)
		}

		s.logger.Debug("loaded catalog manifest",
			zap.String("file", rel),
			zap.String("item", item.ID))
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("catalog directory scanned",
		zap.String("dir", s.dir),
		zap.Int("items", len(items)))
	return items, nil
}

// decodeManifest parses one manifest file by extension.
func decodeManifest(path string) (types.Item, error) {
	var item types.Item

	data, err := os.ReadFile(path)
	if err != nil {
		return item, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = sonic.Unmarshal(data, &item)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &item)
	case ".toml":
		err = toml.Unmarshal(data, &item)
	default:
		return item, fmt.Errorf("unsupported manifest format: %s", filepath.Ext(path))
	}
	if err != nil {
		return item, err
	}

	if item.ID == "" {
		return item, fmt.Errorf("manifest has empty item id")
	}
	return item, nil
}
