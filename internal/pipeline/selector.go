package pipeline

import (
	"time"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/lead"
)

// Decision is the selector's verdict for one lead.
type Decision int

const (
	// Skip leaves an unchanged lead with complete outputs alone.
	Skip Decision = iota
	// ProcessMissing reruns a lead lacking required outputs.
	ProcessMissing
	// ProcessChanged reruns a lead edited after the last successful run.
	ProcessChanged
)

func (d Decision) String() string {
	switch d {
	case ProcessMissing:
		return "process_missing"
	case ProcessChanged:
		return "process_changed"
	default:
		return "skip"
	}
}

// Process reports whether the lead should run through the stages.
func (d Decision) Process() bool { return d != Skip }

// Decide classifies l against the last successful run. A nil lastRun means no
// run has completed yet; only leads with missing outputs are processed then.
func Decide(l lead.Lead, lastRun *time.Time) Decision {
	if !l.Existing.Complete() {
		return ProcessMissing
	}
	if lastRun != nil && !l.LastEditedTime.IsZero() && l.LastEditedTime.After(*lastRun) {
		return ProcessChanged
	}
	return Skip
}

// Select splits leads into those to process, in input order, and the number
// skipped.
func Select(leads []lead.Lead, lastRun *time.Time) (process []lead.Lead, skipped int) {
	for _, l := range leads {
		if Decide(l, lastRun).Process() {
			process = append(process, l)
			continue
		}
		skipped++
	}
	return process, skipped
}
