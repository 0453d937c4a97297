package utils

import (
	"fmt"
	"time"
)

// FormatRelativeTime renders a save time for the "restore this draft?"
// prompt. Within a day it stays relative; beyond that an absolute date is
// more useful than "37 hours ago".
func FormatRelativeTime(t time.Time, now time.Time) string {
	elapsed := now.Sub(t)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		minutes := int(elapsed.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	case elapsed < 24*time.Hour:
		hours := int(elapsed.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		return t.Format("2006-01-02 15:04")
	}
}
