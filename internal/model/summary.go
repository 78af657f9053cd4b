package model

import (
	"sort"
	"time"
)

// RunSummary aggregates the counts of one pipeline run for reporting.
type RunSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time

	Occurrences int
	Targets     int
	Stored      int
	Failed      int
	Incomplete  int

	// FilesWritten counts new files created in the store; FilesReused
	// counts persists that found the file already present.
	FilesWritten int
	FilesReused  int

	RewriteEntries int

	FailuresByKind map[ErrorKind]int
	StoredBySource map[Source]int

	// Canceled is true when the run was stopped before every target finished.
	Canceled bool
}

// NewRunSummary creates a summary with initialized maps.
func NewRunSummary(startedAt time.Time) *RunSummary {
	return &RunSummary{
		StartedAt:      startedAt,
		FailuresByKind: make(map[ErrorKind]int),
		StoredBySource: make(map[Source]int),
	}
}

// AddOutcome counts one terminal outcome.
func (s *RunSummary) AddOutcome(o Outcome) {
	if o.Stored() {
		s.Stored++
		s.StoredBySource[o.Source]++
		return
	}
	s.Failed++
	s.FailuresByKind[o.ErrorKind]++
}

// Duration returns the wall time of the run.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// SortedFailureKinds returns failure kinds ordered by count, then name.
func (s *RunSummary) SortedFailureKinds() []ErrorKind {
	kinds := make([]ErrorKind, 0, len(s.FailuresByKind))
	for k := range s.FailuresByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		ci, cj := s.FailuresByKind[kinds[i]], s.FailuresByKind[kinds[j]]
		if ci != cj {
			return ci > cj
		}
		return kinds[i] < kinds[j]
	})
	return kinds
}

// SortedSources returns sources that produced stored outcomes, by name.
func (s *RunSummary) SortedSources() []Source {
	sources := make([]Source, 0, len(s.StoredBySource))
	for src := range s.StoredBySource {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}
