// Package jobs defines the JSON payload shapes carried opaquely through
// internal/queue, matching the job descriptions in spec.md §4.
package jobs

// DeployJob is the deploy queue's payload (spec.md §4.3).
type DeployJob struct {
	SessionID string            `json:"sessionId"`
	RepoURL   string            `json:"repoUrl"`
	Branch    string            `json:"branch"`
	SubPath   string            `json:"subPath,omitempty"`
	StackInfo map[string]string `json:"stackInfo,omitempty"`
}

// VerifyJob is the verify queue's payload (spec.md §4.4).
type VerifyJob struct {
	SessionID string            `json:"sessionId"`
	RepoURL   string            `json:"repoUrl"`
	Branch    string            `json:"branch"`
	SubPath   string            `json:"subPath,omitempty"`
	StackInfo map[string]string `json:"stackInfo"`
}

// RepairJob is the repair queue's payload (spec.md §4.5).
type RepairJob struct {
	SessionID    string            `json:"sessionId"`
	RepoURL      string            `json:"repoUrl"`
	Branch       string            `json:"branch"`
	SubPath      string            `json:"subPath,omitempty"`
	Instructions string            `json:"instructions"`
	StackInfo    map[string]string `json:"stackInfo,omitempty"`
}

// SDLCJob is the sdlc queue's payload (spec.md §4.6).
type SDLCJob struct {
	SessionID string            `json:"sessionId"`
	RepoURL   string            `json:"repoUrl"`
	Branch    string            `json:"branch"`
	SubPath   string            `json:"subPath,omitempty"`
	StackInfo map[string]string `json:"stackInfo,omitempty"`
}
