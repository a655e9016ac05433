// Package session implements the Session Store (spec.md §3, §4.1): an
// append-only event log with a last-writer-wins projection, backed by GORM
// following the persistence idiom in the teacher's
// backend/pkg/handlers/sdk_config.go (Where/Assign/FirstOrCreate).
package session

import "time"

// Kind distinguishes the four session subtypes by their id prefix.
type Kind string

const (
	KindDeploy Kind = "deploy"
	KindVerify Kind = "verify"
	KindRepair Kind = "repair"
	KindSDLC   Kind = "sdlc"
)

// Prefix returns the id prefix for the kind, per spec.md §3/§6.
func (k Kind) Prefix() string { return string(k) + "-" }

// Outcome is the terminal result of a session. Unset ("") means not yet
// terminal.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Phase is a free-form string within a kind's own phase lattice (e.g.
// "cloning", "provisioning", "terminal").
type Phase string

// LogLine is one appended log entry, ordered by Timestamp.
type LogLine struct {
	Timestamp time.Time
	Text      string
}

// Event is one append to a session's event log (spec.md §3 "Session Event").
type Event struct {
	// Timestamp must be monotonic within a single worker instance appending
	// to the same session (spec.md §5 "Ordering guarantees").
	Timestamp time.Time
	Phase     Phase
	Message   string
	LogLine   string
	// Outcome and ErrorText are set only on the terminal event.
	Outcome     Outcome
	ErrorText   string
	PayloadJSON string
}

// State is the projection returned by Project(): the latest non-null value
// per field across all events, plus the ordered log.
type State struct {
	ID          string
	Kind        Kind
	RepoURL     string
	Branch      string
	SubPath     string
	CreatedAt   time.Time
	Phase       Phase
	Outcome     Outcome
	Message     string
	ErrorText   string
	PayloadJSON string
	Log         []LogLine
	LastUpdated time.Time
}

// Terminal reports whether the session has reached success or failed.
func (s State) Terminal() bool {
	return s.Outcome == OutcomeSuccess || s.Outcome == OutcomeFailed
}
