package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"libreplexity/internal/common/fsutil"
	"libreplexity/pkg/types"
)

// DefaultLargeBytes is the file size from which a scanned model counts as large.
const DefaultLargeBytes int64 = 3 << 30

// LoadDir scans a directory for *.gguf files. ID is the filename, Path the
// absolute path, and the size class is derived from the file size.
func LoadDir(dir string, largeBytes int64) ([]types.ModelSpec, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	if largeBytes <= 0 {
		largeBytes = DefaultLargeBytes
	}
	var models []types.ModelSpec
	for _, e := range entries {
		if e.IsDir() { continue }
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") { continue }
		size := types.SizeSmall
		if info, err := e.Info(); err == nil && info.Size() >= largeBytes {
			size = types.SizeLarge
		}
		models = append(models, types.ModelSpec{ID: name, Name: name, Path: filepath.Join(abs, name), SizeClass: size})
	}
	return models, nil
}
