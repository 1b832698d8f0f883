package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/vaultactivity/internal/activity"
)

const csvHeader = "Path,Access Count,Last Accessed,Last Modified"

// isoMillis matches the UTC millisecond timestamps other tools expect.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// CSV renders records in the given order. Every data field is quoted, so
// paths containing commas or quotes survive a round trip.
func CSV(records []activity.Record) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	for _, r := range records {
		b.WriteByte('\n')
		writeRow(&b,
			r.Path,
			strconv.Itoa(r.AccessCount),
			timestamp(r.AccessedAt()),
			timestamp(r.ModifiedAt()),
		)
	}
	return b.String()
}

func writeRow(b *strings.Builder, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
}

func timestamp(t time.Time, ok bool) string {
	if !ok {
		return ""
	}
	return t.UTC().Format(isoMillis)
}
