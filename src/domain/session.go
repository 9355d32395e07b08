package domain

import (
	"strings"
	"time"
)

const sessionLayout = "20060102_150405"

// SessionID derives a session identifier from a label and a point in time.
// Two runs of the same label collide only within the same millisecond.
func SessionID(label string, t time.Time) string {
	t = t.UTC()
	label = strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(label), "_"), "_")
	if label == "" {
		label = "session"
	}

	return label + "_" + t.Format(sessionLayout) + "_" + t.Format(".000")[1:]
}
