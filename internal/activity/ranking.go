package activity

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"
)

const (
	// minNeglectedPool is the smallest candidate pool for neglected selection.
	minNeglectedPool = 10
	// neglectedFraction of the ascending ranking forms the candidate pool.
	neglectedFraction = 0.25
)

// SortByAccess returns a copy of records ordered by AccessCount. Equal counts
// keep their input order, so repeated refreshes render identically.
func SortByAccess(records []Record, ascending bool) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return out[i].AccessCount < out[j].AccessCount
		}
		return out[i].AccessCount > out[j].AccessCount
	})
	return out
}

// NeglectedPoolSize is max(10, ceil(n/4)) clamped to n.
func NeglectedPoolSize(n int) int {
	size := int(math.Ceil(float64(n) * neglectedFraction))
	if size < minNeglectedPool {
		size = minNeglectedPool
	}
	if size > n {
		size = n
	}
	return size
}

// NeglectedPool returns the lowest ranked slice of an ascending ranking.
func NeglectedPool(ascending []Record) []Record {
	return ascending[:NeglectedPoolSize(len(ascending))]
}

// PickNeglected draws uniformly from the neglected pool of an ascending
// ranking. ok is false when there is nothing to pick from.
func PickNeglected(ascending []Record, rng *rand.Rand) (rec Record, ok bool) {
	pool := NeglectedPool(ascending)
	if len(pool) == 0 {
		return Record{}, false
	}
	return pool[rng.IntN(len(pool))], true
}

// DefaultDecayWindow is the window, in days, over which a score decays to half.
const DefaultDecayWindow = 30

// Score discounts AccessCount by recency. A record accessed now keeps its full
// count; one untouched for the whole window or longer keeps half of it.
func Score(r Record, now time.Time, windowDays float64) float64 {
	score := float64(r.AccessCount)
	at, ok := r.AccessedAt()
	if !ok {
		return score
	}
	if windowDays <= 0 {
		windowDays = DefaultDecayWindow
	}
	days := now.Sub(at).Hours() / 24
	if days < 0 {
		days = 0
	}
	decay := math.Max(0, 1-days/windowDays)
	return score * (0.5 + 0.5*decay)
}

// Status buckets a record by how recently and how often it was viewed.
type Status string

const (
	StatusVeryActive Status = "very-active"
	StatusActive     Status = "active"
	StatusModerate   Status = "moderate"
	StatusNeglected  Status = "neglected"
	StatusLow        Status = "low"
)

// Color is the dashboard colour for the status.
func (s Status) Color() string {
	switch s {
	case StatusVeryActive:
		return "#00ff00"
	case StatusActive:
		return "#88ff88"
	case StatusModerate:
		return "#ffff88"
	case StatusNeglected:
		return "#ff8888"
	default:
		return "#ffaa88"
	}
}

const day = 24 * time.Hour

// Classify evaluates the statuses in precedence order. A record that was
// never accessed is always StatusLow.
func Classify(r Record, now time.Time) Status {
	at, ok := r.AccessedAt()
	if !ok {
		return StatusLow
	}
	age := now.Sub(at)
	switch {
	case age < day && r.AccessCount >= 5:
		return StatusVeryActive
	case age < 7*day:
		return StatusActive
	case age < 30*day:
		return StatusModerate
	case r.AccessCount < 3:
		return StatusNeglected
	default:
		return StatusLow
	}
}

// Bucket is one histogram bar. Max < 0 means unbounded.
type Bucket struct {
	Label   string  `json:"label"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

func (b Bucket) contains(n int) bool {
	return n >= b.Min && (b.Max < 0 || n <= b.Max)
}

// Histogram counts records into the fixed view-count buckets. Every record
// lands in exactly one bucket. Documents that were only modified have no
// views and share the first bucket with single views.
func Histogram(records []Record) []Bucket {
	buckets := []Bucket{
		{Label: "0-1 views", Min: 0, Max: 1},
		{Label: "2-5 views", Min: 2, Max: 5},
		{Label: "6-10 views", Min: 6, Max: 10},
		{Label: "11-20 views", Min: 11, Max: 20},
		{Label: "21-50 views", Min: 21, Max: 50},
		{Label: "51+ views", Min: 51, Max: -1},
	}
	for _, r := range records {
		idx := 0
		for i := range buckets {
			if buckets[i].contains(r.AccessCount) {
				idx = i
				break
			}
		}
		buckets[idx].Count++
	}

	peak := 0
	for _, b := range buckets {
		peak = max(peak, b.Count)
	}
	if peak > 0 {
		for i := range buckets {
			buckets[i].Percent = float64(buckets[i].Count) / float64(peak) * 100
		}
	}
	return buckets
}

// Summary is the headline numbers shown on the dashboard and in reports.
type Summary struct {
	Files       int     `json:"files"`
	TotalViews  int     `json:"total_views"`
	AverageView float64 `json:"average_views"`
	ActiveToday int     `json:"active_today"`
}

// Summarize totals records. AverageView is rounded to one decimal.
func Summarize(records []Record, now time.Time) Summary {
	s := Summary{Files: len(records)}
	for _, r := range records {
		s.TotalViews += r.AccessCount
		if at, ok := r.AccessedAt(); ok && now.Sub(at) < day {
			s.ActiveToday++
		}
	}
	if s.Files > 0 {
		s.AverageView = math.Round(float64(s.TotalViews)/float64(s.Files)*10) / 10
	}
	return s
}
