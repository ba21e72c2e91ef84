package models

import "time"

// ToMillis converts t to the unix-millisecond form stored in the database.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis is the inverse of ToMillis, in UTC.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
