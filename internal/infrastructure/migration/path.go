package migration

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDir is the migrations directory relative to the repository root
const DefaultDir = "migrations"

// ResolveDir returns the absolute migrations directory. An explicit path wins;
// otherwise ./migrations, then migrations two levels above the executable.
func ResolveDir(explicit string) (string, error) {
	candidates := []string{DefaultDir}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "..", "..", DefaultDir))
	}
	return resolveDir(explicit, candidates)
}

func resolveDir(explicit string, candidates []string) (string, error) {
	dir := explicit
	if dir == "" {
		dir = DefaultDir
		for _, c := range candidates {
			if info, err := os.Stat(c); err == nil && info.IsDir() {
				dir = c
				break
			}
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve migrations path %q: %w", dir, err)
	}
	return abs, nil
}
