package activity

import "strings"

// Settings are owned by the host and handed to the tracker by value.
type Settings struct {
	ExcludedFolders   []string `json:"excludedFolders"`
	TrackAccess       bool     `json:"trackAccess"`
	TrackModification bool     `json:"trackModification"`
	ShowFullPath      bool     `json:"showFullPath"`
}

// DefaultSettings tracks everything and excludes nothing.
func DefaultSettings() Settings {
	return Settings{
		ExcludedFolders:   []string{},
		TrackAccess:       true,
		TrackModification: true,
		ShowFullPath:      true,
	}
}

func (s Settings) clone() Settings {
	s.ExcludedFolders = append([]string(nil), s.ExcludedFolders...)
	return s
}

// ParseFolderList parses a comma separated folder list as typed into the
// settings panel: entries are trimmed and empty ones dropped.
func ParseFolderList(s string) []string {
	folders := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		folders = append(folders, part)
	}
	return folders
}
