package engine

import (
	"time"

	"github.com/lazypower/vaultactivity/internal/activity"
	"github.com/lazypower/vaultactivity/internal/report"
)

// ListSize is the length of the most/least viewed lists.
const ListSize = 20

// DashboardListSize is the length of the dashboard's top and bottom lists.
const DashboardListSize = 10

// Entry is one row of a ranked list.
type Entry struct {
	Rank         int             `json:"rank"`
	Path         string          `json:"path"`
	Name         string          `json:"name"`
	Views        int             `json:"views"`
	LastAccessed string          `json:"last_accessed"`
	LastModified string          `json:"last_modified,omitempty"`
	Status       activity.Status `json:"status"`
	Color        string          `json:"color"`
	Score        float64         `json:"score"`
}

// ListView is a titled ranked list.
type ListView struct {
	Title   string  `json:"title"`
	Entries []Entry `json:"entries"`
}

// Dashboard is everything the dashboard renders.
type Dashboard struct {
	Summary      activity.Summary  `json:"summary"`
	MostViewed   []Entry           `json:"most_viewed"`
	LeastViewed  []Entry           `json:"least_viewed"`
	Distribution []activity.Bucket `json:"distribution"`
	GeneratedAt  time.Time         `json:"generated_at"`
}

func entries(ranked []activity.Record, limit int, fullPath bool, now time.Time) []Entry {
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Entry, 0, len(ranked))
	for i, r := range ranked {
		status := activity.Classify(r, now)
		e := Entry{
			Rank:         i + 1,
			Path:         r.Path,
			Name:         activity.DisplayName(r.Path, fullPath),
			Views:        r.AccessCount,
			LastAccessed: report.LastAccessed(r, now),
			Status:       status,
			Color:        status.Color(),
			Score:        activity.Score(r, now, activity.DefaultDecayWindow),
		}
		if at, ok := r.ModifiedAt(); ok {
			e.LastModified = report.RelativeTime(at, now)
		}
		out = append(out, e)
	}
	return out
}
