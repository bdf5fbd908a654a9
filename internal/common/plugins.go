package common

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadPluginFile reads one plugin name per line. Blank lines and lines starting
// with # are ignored; a trailing ":version" suffix is dropped.
func ReadPluginFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin file: %w", err)
	}
	defer f.Close()

	var plugins []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.Index(line, ":"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		plugins = append(plugins, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read plugin file: %w", err)
	}
	return plugins, nil
}

// MergePlugins combines explicit names with names from the plugin file, keeping first occurrence order
func MergePlugins(explicit []string, fromFile []string) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, list := range [][]string{explicit, fromFile} {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			merged = append(merged, name)
		}
	}
	return merged
}
