package scraper

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Summary is what a run reports once polling stops, however it stopped.
type Summary struct {
	SessionID string
	Source    string
	Attempts  int
	// Successful counts records that were extracted and stored.
	Successful int
	// Failed counts polls that produced no record.
	Failed int
	// StorageFailures counts records that were extracted but not persisted.
	StorageFailures int
	Elapsed         time.Duration
	StoragePath     string
	Interrupted     bool
}

// SuccessRate is the percentage of attempts that ended in a stored record.
func (s *Summary) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Attempts) * 100
}

func (s *Summary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("session_id", s.SessionID)
	enc.AddString("source", s.Source)
	enc.AddInt("attempts", s.Attempts)
	enc.AddInt("successful", s.Successful)
	enc.AddInt("failed", s.Failed)
	enc.AddInt("storage_failures", s.StorageFailures)
	enc.AddFloat64("success_rate", s.SuccessRate())
	enc.AddDuration("elapsed", s.Elapsed)
	enc.AddString("storage_path", s.StoragePath)
	enc.AddBool("interrupted", s.Interrupted)
	return nil
}

func (s *Summary) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "session:          %s\n", s.SessionID)
	fmt.Fprintf(&b, "attempts:         %d\n", s.Attempts)
	fmt.Fprintf(&b, "successful:       %d (%.1f%%)\n", s.Successful, s.SuccessRate())
	fmt.Fprintf(&b, "failed:           %d\n", s.Failed)
	fmt.Fprintf(&b, "storage failures: %d\n", s.StorageFailures)
	fmt.Fprintf(&b, "elapsed:          %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "output:           %s\n", s.StoragePath)
	if s.Interrupted {
		b.WriteString("stopped early:    interrupted\n")
	}

	return b.String()
}
