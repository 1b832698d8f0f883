package activity

import (
	"strings"
	"time"
)

// Record is the activity kept for a single vault path.
type Record struct {
	Path         string `json:"path"`
	AccessCount  int    `json:"accessCount"`
	LastAccessed *int64 `json:"lastAccessed"` // unix ms, nil until first counted access
	LastModified *int64 `json:"lastModified"` // unix ms, nil until first counted modification
}

// Database maps a vault path to its record. It has no ordering; callers sort.
type Database map[string]Record

// Clone returns a copy of the database. Timestamp pointers are copied too so
// the result shares nothing with the receiver.
func (db Database) Clone() Database {
	out := make(Database, len(db))
	for k, r := range db {
		out[k] = r.clone()
	}
	return out
}

func (r Record) clone() Record {
	if r.LastAccessed != nil {
		v := *r.LastAccessed
		r.LastAccessed = &v
	}
	if r.LastModified != nil {
		v := *r.LastModified
		r.LastModified = &v
	}
	return r
}

// AccessedAt returns LastAccessed as a time. ok is false when the record was
// never accessed.
func (r Record) AccessedAt() (t time.Time, ok bool) {
	if r.LastAccessed == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*r.LastAccessed), true
}

// ModifiedAt returns LastModified as a time.
func (r Record) ModifiedAt() (t time.Time, ok bool) {
	if r.LastModified == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*r.LastModified), true
}

// DisplayName returns the path, or only its last segment when full is false.
func DisplayName(path string, full bool) string {
	if full {
		return path
	}
	if i := strings.LastIndex(path, "/"); i >= 0 && i < len(path)-1 {
		return path[i+1:]
	}
	return path
}

func millis(t time.Time) *int64 {
	ms := t.UnixMilli()
	return &ms
}
