package utils

import (
	"time"
)

const layoutDateTime = "2006-01-02 15:04 MST"

// FormatDateTime formats t in UTC for documents, e.g. "2026-05-01 06:00 UTC".
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(layoutDateTime)
}
