package executable

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExecutableInfo contains information about an executable file
type ExecutableInfo struct {
	Name string // Executable name
	Path string // Full path to executable
}

// Source discovers the executables directly inside one directory.
type Source struct {
	Dir string
}

// Name identifies the source in logs
func (s Source) Name() string {
	return "exec:" + s.Dir
}

// Scan lists the executables in s.Dir. Subdirectories are not descended
// into; entries that cannot be stat'ed are skipped.
func (s Source) Scan(ctx context.Context) ([]ExecutableInfo, error) {
	dirEntries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Dir, err)
	}

	result := make([]ExecutableInfo, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		baseName := dirEntry.Name()
		// Skip hidden files (starting with .)
		if strings.HasPrefix(baseName, ".") {
			continue
		}

		path := filepath.Join(s.Dir, baseName)
		// Stat follows symlinks, dangling ones fail here
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		if info.IsDir() || !isExecutable(info) {
			continue
		}

		result = append(result, ExecutableInfo{
			Name: baseName,
			Path: path,
		})
	}

	return result, nil
}

func isExecutable(info os.FileInfo) bool {
	// Check if file has execute permission for user, group, or others
	mode := info.Mode()
	return mode&0111 != 0
}
