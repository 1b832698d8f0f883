// Package report renders activity snapshots as a Markdown report and as CSV.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/vaultactivity/internal/activity"
)

// TableSize is how many rows each ranked table in the report shows.
const TableSize = 10

// RelativeTime describes ts relative to now the way the dashboard does.
// Anything a year or older is shown as a date.
func RelativeTime(ts, now time.Time) string {
	diff := now.Sub(ts)
	mins := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))

	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%dm ago", mins)
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return plural(days/7, "week")
	case days < 365:
		return plural(days/30, "month")
	default:
		return ts.In(now.Location()).Format(time.DateOnly)
	}
}

func plural(n int, unit string) string {
	if n > 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}

// LastAccessed is RelativeTime for the record, or "Never".
func LastAccessed(r activity.Record, now time.Time) string {
	at, ok := r.AccessedAt()
	if !ok {
		return "Never"
	}
	return RelativeTime(at, now)
}

// FileName is the name a report generated at now is saved under.
func FileName(now time.Time) string {
	return "Vault Activity Report " + now.UTC().Format(time.DateOnly) + ".md"
}

// Markdown renders the activity report for records, which should already be
// filtered.
func Markdown(records []activity.Record, now time.Time) string {
	sum := activity.Summarize(records, now)

	var b strings.Builder
	b.WriteString("# Vault Activity Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", now.Format(time.DateOnly))
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- **Total Files Tracked:** %d\n", sum.Files)
	fmt.Fprintf(&b, "- **Total Views:** %d\n", sum.TotalViews)
	fmt.Fprintf(&b, "- **Average Views per File:** %s\n\n", average(sum))

	b.WriteString("## Most Viewed Notes\n\n")
	writeTable(&b, activity.SortByAccess(records, false), now)
	b.WriteString("\n## Least Viewed Notes\n\n")
	writeTable(&b, activity.SortByAccess(records, true), now)
	return b.String()
}

func average(s activity.Summary) string {
	if s.Files == 0 {
		return "0"
	}
	return strconv.FormatFloat(s.AverageView, 'f', 1, 64)
}

func writeTable(b *strings.Builder, ranked []activity.Record, now time.Time) {
	b.WriteString("| Rank | Note | Views | Last Accessed |\n")
	b.WriteString("|------|------|----------|---------------|\n")
	for i, r := range ranked {
		if i == TableSize {
			break
		}
		fmt.Fprintf(b, "| %d | %s | %d | %s |\n",
			i+1, strings.ReplaceAll(r.Path, "|", `\|`), r.AccessCount, LastAccessed(r, now))
	}
}
