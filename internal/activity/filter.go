package activity

import "strings"

// Filter decides which vault paths are never tracked nor reported.
type Filter struct {
	// ConfigDir is the host's reserved configuration directory, e.g. ".obsidian".
	ConfigDir string
	Folders   []string
}

// Excluded reports whether path is the config dir, an excluded folder, or
// lies beneath one of them.
func (f Filter) Excluded(path string) bool {
	if f.ConfigDir != "" && within(path, f.ConfigDir) {
		return true
	}
	for _, folder := range f.Folders {
		if within(path, folder) {
			return true
		}
	}
	return false
}

func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+"/")
}
