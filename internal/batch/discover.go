package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover lists pending batch files (*.json) directly under queueDir, sorted
// by name. Subdirectories such as the archive are not descended into.
func Discover(queueDir string) ([]string, error) {
	entries, err := os.ReadDir(queueDir)
	if err != nil {
		return nil, fmt.Errorf("read queue dir: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(queueDir, name))
	}
	sort.Strings(paths)
	return paths, nil
}
