// Package results provides a thread-safe store for per-stage outcomes and
// the roll-up of those outcomes into the overall pipeline verdict.
package results

import (
	"fmt"
	"sync"
	"time"
)

// Outcome is the recorded result of one stage job.
type Outcome struct {
	Stage    string
	ExitCode int
	Err      error
	Duration time.Duration
}

// OK reports whether the stage job completed successfully.
func (o Outcome) OK() bool {
	return o.Err == nil && o.ExitCode == 0
}

// Store collects stage outcomes written concurrently by the stage workers.
type Store struct {
	mu       sync.RWMutex
	outcomes map[string]Outcome
	order    []string
}

// New creates an empty store.
func New() *Store {
	return &Store{outcomes: make(map[string]Outcome)}
}

// Set records the outcome for a stage, replacing any previous record.
func (s *Store) Set(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.outcomes[o.Stage]; !seen {
		s.order = append(s.order, o.Stage)
	}
	s.outcomes[o.Stage] = o
}

// Get returns the outcome recorded for the named stage.
func (s *Store) Get(stage string) (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outcomes[stage]
	return o, ok
}

// All returns every outcome in first-recorded order.
func (s *Store) All() []Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Outcome, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.outcomes[name])
	}
	return out
}

// Verdict rolls the recorded outcomes into the pipeline verdict: nil only if
// every stage succeeded, otherwise an error naming each failing stage.
func (s *Store) Verdict() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var failed []string
	for _, name := range s.order {
		if !s.outcomes[name].OK() {
			failed = append(failed, name)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d stage(s) failed: %v", len(failed), len(s.order), failed)
}
