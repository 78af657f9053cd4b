package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/imgrescue/internal/fetch"
	"github.com/nao1215/imgrescue/internal/manifest"
	"github.com/nao1215/imgrescue/internal/mapping"
	"github.com/nao1215/imgrescue/internal/model"
	"github.com/nao1215/imgrescue/internal/report"
	"github.com/nao1215/imgrescue/internal/resolve"
	"github.com/nao1215/imgrescue/internal/store"
)

// History is the part of the history database a run uses.
type History interface {
	StartRun(ctx context.Context, startedAt time.Time) (int64, error)
	FinishRun(ctx context.Context, runID int64, summary *model.RunSummary) error
	SaveOutcome(ctx context.Context, runID int64, o model.Outcome) error
	StoredOutcomes(ctx context.Context) (map[string]model.Outcome, error)
}

// AssetChecker reports whether a stored file is present.
type AssetChecker interface {
	Has(filename string) bool
}

// Progress receives fetch progress. It is driven from a single goroutine
// at a time.
type Progress interface {
	Start(total int)
	Increment()
	Finish()
}

type noProgress struct{}

func (noProgress) Start(int)  {}
func (noProgress) Increment() {}
func (noProgress) Finish()    {}

// LoadStep reads the occurrence records.
type LoadStep struct {
	path string
}

// NewLoadStep creates a step reading occurrences from path.
func NewLoadStep(path string) *LoadStep {
	return &LoadStep{path: path}
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load_occurrences"
}

// Do executes the load step.
func (s *LoadStep) Do(_ context.Context, state *State) error {
	occurrences, err := manifest.ReadOccurrencesFile(s.path)
	if err != nil {
		return err
	}
	state.Occurrences = occurrences
	return nil
}

// ResolveStep picks the canonical URL of every occurrence and builds the
// worklist. The window and URL restriction only narrow State.Pending.
type ResolveStep struct {
	only   map[string]bool
	start  int
	limit  int
	logger *slog.Logger
}

// ResolveStepOption configures a ResolveStep.
type ResolveStepOption func(*ResolveStep)

// WithOnly restricts fetching to the given URLs. A nil set means all.
func WithOnly(urls map[string]bool) ResolveStepOption {
	return func(s *ResolveStep) {
		s.only = urls
	}
}

// WithWindow limits fetching to limit targets starting at start.
// A limit of zero means no upper bound.
func WithWindow(start, limit int) ResolveStepOption {
	return func(s *ResolveStep) {
		s.start = start
		s.limit = limit
	}
}

// WithResolveLogger sets a custom logger for the resolve step.
func WithResolveLogger(logger *slog.Logger) ResolveStepOption {
	return func(s *ResolveStep) {
		s.logger = logger
	}
}

// NewResolveStep creates a resolve step.
func NewResolveStep(opts ...ResolveStepOption) *ResolveStep {
	s := &ResolveStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ResolveStep) Name() string {
	return "resolve"
}

// Do executes the resolve step.
func (s *ResolveStep) Do(_ context.Context, state *State) error {
	state.Selections = resolve.SelectAll(state.Occurrences)
	state.Worklist = resolve.BuildWorklist(state.Selections)
	state.Local = resolve.LocalSelections(state.Selections)

	pending := state.Worklist
	if s.only != nil {
		pending = resolve.Restrict(pending, s.only)
	}
	state.Pending = resolve.Slice(pending, s.start, s.limit)

	s.logger.Info("resolved occurrences",
		"occurrences", len(state.Occurrences),
		"targets", len(state.Worklist),
		"pending", len(state.Pending),
		"local", len(state.Local),
	)
	return nil
}

// WritePlanStep writes the annotated occurrences and the worklist.
// Empty paths are skipped.
type WritePlanStep struct {
	annotatedPath string
	worklistPath  string
}

// NewWritePlanStep creates a plan writer.
func NewWritePlanStep(annotatedPath, worklistPath string) *WritePlanStep {
	return &WritePlanStep{annotatedPath: annotatedPath, worklistPath: worklistPath}
}

// Name returns the step name.
func (s *WritePlanStep) Name() string {
	return "write_plan"
}

// Do executes the plan writer.
func (s *WritePlanStep) Do(_ context.Context, state *State) error {
	if s.annotatedPath != "" {
		err := manifest.WriteFile(s.annotatedPath, func(w io.Writer) error {
			return manifest.WriteOccurrences(w, state.Selections)
		})
		if err != nil {
			return fmt.Errorf("failed to write annotated occurrences: %w", err)
		}
	}
	if s.worklistPath != "" {
		err := manifest.WriteFile(s.worklistPath, func(w io.Writer) error {
			return manifest.WriteWorklist(w, state.Worklist)
		})
		if err != nil {
			return fmt.Errorf("failed to write worklist: %w", err)
		}
	}
	return nil
}

// BeginRunStep opens a run record in the history.
type BeginRunStep struct {
	history History
}

// NewBeginRunStep creates a step that records the run start.
func NewBeginRunStep(history History) *BeginRunStep {
	return &BeginRunStep{history: history}
}

// Name returns the step name.
func (s *BeginRunStep) Name() string {
	return "begin_run"
}

// Do executes the step.
func (s *BeginRunStep) Do(ctx context.Context, state *State) error {
	id, err := s.history.StartRun(ctx, state.StartedAt)
	if err != nil {
		return err
	}
	state.RunID = id
	return nil
}

// ReuseStep takes stored outcomes from earlier runs whose asset file still
// exists and drops their targets from State.Pending.
type ReuseStep struct {
	history History
	assets  AssetChecker
	logger  *slog.Logger
}

// NewReuseStep creates a resume step.
func NewReuseStep(history History, assets AssetChecker, logger *slog.Logger) *ReuseStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReuseStep{history: history, assets: assets, logger: logger}
}

// Name returns the step name.
func (s *ReuseStep) Name() string {
	return "reuse"
}

// Do executes the step.
func (s *ReuseStep) Do(ctx context.Context, state *State) error {
	previous, err := s.history.StoredOutcomes(ctx)
	if err != nil {
		return err
	}

	reused := 0
	for _, target := range state.Worklist {
		o, ok := previous[target.URL]
		if !ok || !s.assets.Has(o.Filename()) {
			continue
		}
		o.Source = model.SourceHistory
		state.Outcomes[target.URL] = o
		reused++
	}

	pending := make([]model.Target, 0, len(state.Pending))
	for _, target := range state.Pending {
		if _, done := state.Outcomes[target.URL]; !done {
			pending = append(pending, target)
		}
	}
	state.Pending = pending

	s.logger.Info("reused stored outcomes", "reused", reused, "pending", len(state.Pending))
	return nil
}

// FetchStep fetches State.Pending and persists every body to the store.
type FetchStep struct {
	client   fetch.Doer
	store    *store.Store
	history  History
	progress Progress
	options  []fetch.Option
	logger   *slog.Logger
}

// FetchStepOption configures a FetchStep.
type FetchStepOption func(*FetchStep)

// WithEngineOptions passes options through to the fetch engine.
func WithEngineOptions(opts ...fetch.Option) FetchStepOption {
	return func(s *FetchStep) {
		s.options = append(s.options, opts...)
	}
}

// WithHistory records every outcome in history as it completes.
func WithHistory(history History) FetchStepOption {
	return func(s *FetchStep) {
		s.history = history
	}
}

// WithProgress reports each completed target.
func WithProgress(p Progress) FetchStepOption {
	return func(s *FetchStep) {
		s.progress = p
	}
}

// WithFetchLogger sets a custom logger for the fetch step.
func WithFetchLogger(logger *slog.Logger) FetchStepOption {
	return func(s *FetchStep) {
		s.logger = logger
	}
}

// NewFetchStep creates a fetch step using client for direct requests.
func NewFetchStep(client fetch.Doer, st *store.Store, opts ...FetchStepOption) *FetchStep {
	s := &FetchStep{
		client:   client,
		store:    st,
		progress: noProgress{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do executes the fetch step. A store write failure stops the run, since
// later bodies would fail the same way.
func (s *FetchStep) Do(ctx context.Context, state *State) error {
	if len(state.Pending) == 0 {
		s.logger.Info("nothing to fetch")
		return nil
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	saveCtx := context.WithoutCancel(ctx)

	// Handler calls are serialized by the engine. The store may keep an
	// earlier file for the same bytes under another extension, so the
	// outcome takes its extension from the persisted asset.
	var persistErr error
	extensions := make(map[string]string)
	handler := func(r fetch.Result) {
		o := r.Outcome
		if o.Stored() {
			asset, _, err := s.store.Persist(r.Body, o.ContentType, r.Target.URL)
			if err != nil {
				if persistErr == nil {
					persistErr = fmt.Errorf("failed to persist %s: %w", r.Target.URL, err)
					cancel(persistErr)
				}
				return
			}
			o.Extension = asset.Extension
			extensions[o.URL] = asset.Extension
		}
		if s.history != nil {
			if err := s.history.SaveOutcome(saveCtx, state.RunID, o); err != nil {
				s.logger.Warn("failed to record outcome", "url", o.URL, "error", err)
			}
		}
		s.progress.Increment()
	}

	opts := append([]fetch.Option{fetch.WithLogger(s.logger)}, s.options...)
	opts = append(opts, fetch.WithResultHandler(handler))
	engine := fetch.NewEngine(s.client, opts...)

	s.progress.Start(len(state.Pending))
	results, runErr := engine.Run(ctx, state.Pending)
	s.progress.Finish()

	state.FilesWritten += s.store.Written()
	state.FilesReused += s.store.Reused()

	if persistErr != nil {
		return persistErr
	}
	for _, r := range results {
		if !r.Done {
			continue
		}
		o := r.Outcome
		if ext, ok := extensions[o.URL]; ok {
			o.Extension = ext
		}
		state.Outcomes[r.Target.URL] = o
	}
	return runErr
}

// ExpandStep derives the rewrite table, the failure ledger and the run
// summary from the outcomes collected so far.
type ExpandStep struct {
	publicPrefix string
	now          func() time.Time
}

// NewExpandStep creates an expand step. publicPrefix is the hosting base
// for new_url and may be empty.
func NewExpandStep(publicPrefix string) *ExpandStep {
	return &ExpandStep{publicPrefix: publicPrefix, now: time.Now}
}

// Name returns the step name.
func (s *ExpandStep) Name() string {
	return "expand"
}

// Do executes the expand step.
func (s *ExpandStep) Do(_ context.Context, state *State) error {
	unfinished := make([]model.Target, 0)
	for _, target := range state.Pending {
		if _, ok := state.Outcomes[target.URL]; !ok {
			unfinished = append(unfinished, target)
		}
	}
	state.Unfinished = unfinished

	outcomes := state.SortedOutcomes()
	state.Rewrite = mapping.Expand(state.Selections, state.Outcomes, s.publicPrefix)
	state.Failures = mapping.Ledger(outcomes, state.Local, unfinished)

	summary := model.NewRunSummary(state.StartedAt)
	summary.Occurrences = len(state.Occurrences)
	for _, o := range outcomes {
		summary.AddOutcome(o)
	}
	if len(state.Local) > 0 {
		summary.FailuresByKind[model.ErrorKindLocalFile] += len(state.Local)
	}
	if len(unfinished) > 0 {
		summary.FailuresByKind[model.ErrorKindIncomplete] += len(unfinished)
	}
	summary.Incomplete = len(unfinished)
	summary.Targets = len(outcomes) + len(unfinished)
	summary.FilesWritten = state.FilesWritten
	summary.FilesReused = state.FilesReused
	summary.RewriteEntries = len(state.Rewrite)
	summary.Canceled = state.Canceled
	summary.FinishedAt = s.now()
	state.Summary = summary
	return nil
}

// WriteOutputsStep writes the rewrite table and the failure ledger.
// Empty paths are skipped.
type WriteOutputsStep struct {
	rewritePath string
	failurePath string
}

// NewWriteOutputsStep creates the output writer.
func NewWriteOutputsStep(rewritePath, failurePath string) *WriteOutputsStep {
	return &WriteOutputsStep{rewritePath: rewritePath, failurePath: failurePath}
}

// Name returns the step name.
func (s *WriteOutputsStep) Name() string {
	return "write_outputs"
}

// Do executes the output writer.
func (s *WriteOutputsStep) Do(_ context.Context, state *State) error {
	if s.rewritePath != "" {
		err := manifest.WriteFile(s.rewritePath, func(w io.Writer) error {
			return manifest.WriteRewriteTable(w, state.Rewrite)
		})
		if err != nil {
			return fmt.Errorf("failed to write rewrite table: %w", err)
		}
	}
	if s.failurePath != "" {
		err := manifest.WriteFile(s.failurePath, func(w io.Writer) error {
			return manifest.WriteFailures(w, state.Failures)
		})
		if err != nil {
			return fmt.Errorf("failed to write failure ledger: %w", err)
		}
	}
	return nil
}

// ReportStep renders the run summary with a report.Writer.
type ReportStep struct {
	writer report.Writer
}

// NewReportStep creates a report step.
func NewReportStep(writer report.Writer) *ReportStep {
	return &ReportStep{writer: writer}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do executes the report step.
func (s *ReportStep) Do(_ context.Context, state *State) error {
	if state.Summary == nil {
		return nil
	}
	_, err := s.writer.Write(&report.Report{Summary: state.Summary, Failures: state.Failures})
	return err
}

// SummaryFileStep writes the run summary to a file. A ".json" path gets
// the JSON report, anything else Markdown.
type SummaryFileStep struct {
	path string
}

// NewSummaryFileStep creates a summary file writer.
func NewSummaryFileStep(path string) *SummaryFileStep {
	return &SummaryFileStep{path: path}
}

// Name returns the step name.
func (s *SummaryFileStep) Name() string {
	return "write_summary"
}

// Do executes the summary writer.
func (s *SummaryFileStep) Do(_ context.Context, state *State) error {
	if state.Summary == nil {
		return nil
	}
	rep := &report.Report{Summary: state.Summary, Failures: state.Failures}
	err := manifest.WriteFile(s.path, func(w io.Writer) error {
		var writer report.Writer = report.NewMarkdownWriter(w)
		if strings.EqualFold(filepath.Ext(s.path), ".json") {
			writer = report.NewJSONWriter(w, report.WithPrettyPrint())
		}
		_, err := writer.Write(rep)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// FinishRunStep closes the run record in the history.
type FinishRunStep struct {
	history History
}

// NewFinishRunStep creates a step that records the run result.
func NewFinishRunStep(history History) *FinishRunStep {
	return &FinishRunStep{history: history}
}

// Name returns the step name.
func (s *FinishRunStep) Name() string {
	return "finish_run"
}

// Do executes the step.
func (s *FinishRunStep) Do(ctx context.Context, state *State) error {
	if state.RunID == 0 || state.Summary == nil {
		return nil
	}
	return s.history.FinishRun(ctx, state.RunID, state.Summary)
}
