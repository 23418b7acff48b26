package ical

import "time"

const (
	dateTimeFormat = "20060102T150405Z"
	dateFormat     = "20060102"
)

// FormatDate renders the UTC calendar date as YYYYMMDD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateFormat)
}

// FormatDateTime renders t as a UTC date-time, e.g. 20240115T093000Z.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(dateTimeFormat)
}
