package pipeline

import (
	"sort"
	"time"

	"github.com/nao1215/imgrescue/internal/model"
)

// State is the data a run accumulates as it moves through the steps.
type State struct {
	// RunID is the history row of this run, or 0 without history.
	RunID     int64
	StartedAt time.Time

	Occurrences []model.Occurrence
	Selections  []model.Selection

	// Worklist is every fetchable target. Pending is the part of it this
	// run still has to fetch after windowing, --only-failed and reuse.
	Worklist []model.Target
	Pending  []model.Target

	// Local holds file:// selections, reported rather than fetched.
	Local []model.Selection

	// Outcomes holds the terminal outcome per target URL, including ones
	// reused from history.
	Outcomes map[string]model.Outcome

	// Unfinished lists pending targets the run stopped before completing.
	Unfinished []model.Target

	Rewrite  []model.RewriteEntry
	Failures []model.FailureEntry
	Summary  *model.RunSummary

	// FilesWritten and FilesReused mirror the store counters of the run.
	FilesWritten int
	FilesReused  int

	Canceled       bool
	PerformedSteps []string
}

// NewState returns an empty state for a run starting at startedAt.
func NewState(startedAt time.Time) *State {
	return &State{
		StartedAt: startedAt,
		Outcomes:  make(map[string]model.Outcome),
	}
}

// SortedOutcomes returns the outcomes ordered by URL.
func (s *State) SortedOutcomes() []model.Outcome {
	outcomes := make([]model.Outcome, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].URL < outcomes[j].URL
	})
	return outcomes
}
