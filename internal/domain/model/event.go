package model

import "time"

// EventKind identifies one of the rep-lifecycle event variants.
type EventKind string

// Lifecycle event kinds emitted by a session.
const (
	EventRepStart    EventKind = "rep_start"
	EventRepComplete EventKind = "rep_complete"
	EventRepRejected EventKind = "rep_rejected"
	EventCue         EventKind = "cue"
)

// CueSeverity grades how urgently a coaching cue should be surfaced.
type CueSeverity string

// Cue severities.
const (
	SeverityInfo    CueSeverity = "info"
	SeverityWarning CueSeverity = "warning"
	SeverityDanger  CueSeverity = "danger"
)

// Event is one rep-lifecycle event. Kind selects which optional fields are
// populated: Summary and Score on rep-complete, Reasons on rep-rejected,
// CueID/Severity/Text on cue.
type Event struct {
	Kind     EventKind
	TS       time.Time
	RepIndex int

	Summary *RepSummary
	Score   *ScoreBreakdown
	Reasons []string

	CueID    string
	Severity CueSeverity
	Text     string
}

// RepStartEvent builds a rep-start event.
func RepStartEvent(ts time.Time, repIndex int) Event {
	return Event{Kind: EventRepStart, TS: ts, RepIndex: repIndex}
}

// RepCompleteEvent builds a rep-complete event carrying the summary and score.
func RepCompleteEvent(ts time.Time, repIndex int, sum *RepSummary, score *ScoreBreakdown) Event {
	return Event{Kind: EventRepComplete, TS: ts, RepIndex: repIndex, Summary: sum, Score: score}
}

// RepRejectedEvent builds a rep-rejected event with its rejection reasons.
func RepRejectedEvent(ts time.Time, repIndex int, reasons []string) Event {
	return Event{Kind: EventRepRejected, TS: ts, RepIndex: repIndex, Reasons: reasons}
}

// CueEvent builds a coaching-cue event.
func CueEvent(ts time.Time, repIndex int, cueID string, severity CueSeverity, text string) Event {
	return Event{Kind: EventCue, TS: ts, RepIndex: repIndex, CueID: cueID, Severity: severity, Text: text}
}
