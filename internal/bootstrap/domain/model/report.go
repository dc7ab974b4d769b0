package model

import (
	"sort"
	"time"
)

// Step names one stage of a bootstrap run
type Step string

const (
	StepSelectDatabase   Step = "select_database"
	StepCreateUser       Step = "create_user"
	StepCreateCollection Step = "create_collection"
	StepAnnounce         Step = "announce"
)

// Outcome is how a step ended
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeExisting Outcome = "existing"
	OutcomeFailed   Outcome = "failed"
)

// StepResult records one executed step
type StepResult struct {
	Step     Step          `json:"step"`
	Target   string        `json:"target"`
	Outcome  Outcome       `json:"outcome"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Report summarises a bootstrap run
type Report struct {
	RunID      string       `json:"runId"`
	Database   string       `json:"database"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Steps      []StepResult `json:"steps"`
	Completed  bool         `json:"completed"`
	Err        error        `json:"-"`
}

// FailedStep returns the step that halted the run, if any
func (r *Report) FailedStep() (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Outcome == OutcomeFailed {
			return s, true
		}
	}
	return StepResult{}, false
}

// Duration is the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// State is what inspection finds on the server for one database
type State struct {
	RunID       string     `json:"runId,omitempty"`
	Database    string     `json:"database"`
	Collections []string   `json:"collections"`
	Users       []UserSpec `json:"users"`
}

// HasCollection reports whether the database contains name
func (s *State) HasCollection(name string) bool {
	for _, c := range s.Collections {
		if c == name {
			return true
		}
	}
	return false
}

// User returns the user called name
func (s *State) User(name string) (UserSpec, bool) {
	for _, u := range s.Users {
		if u.Name == name {
			return u, true
		}
	}
	return UserSpec{}, false
}

// SortedCollections returns the collection names in lexical order
func (s *State) SortedCollections() []string {
	out := append([]string(nil), s.Collections...)
	sort.Strings(out)
	return out
}
