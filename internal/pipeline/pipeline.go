package pipeline

import (
	"context"
	"errors"
	"log/slog"
)

// Step is one stage of a run.
type Step interface {
	// Do executes the step against state. A returned error stops the run;
	// per-URL failures are recorded as outcomes instead.
	Do(ctx context.Context, state *State) error

	// Name returns the step's name for logging.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps  []Step
	final  []Step
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalStep appends a step that also runs after the run was canceled.
// Final steps receive a context that is not canceled with the run's.
func (p *Pipeline) AddFinalStep(step Step) {
	p.final = append(p.final, step)
}

// Execute runs the steps in order and then the final steps.
//
// A step error other than cancellation stops the run and skips the final
// steps, since there is nothing consistent to write. On cancellation the
// state is marked canceled, the final steps still run, and ctx.Err() is
// returned.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	runErr := p.run(ctx, state)
	if runErr != nil && !isCancellation(runErr) {
		return runErr
	}
	if runErr != nil {
		state.Canceled = true
	}

	finalCtx := context.WithoutCancel(ctx)
	for _, step := range p.final {
		if err := p.do(finalCtx, step, state); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func (p *Pipeline) run(ctx context.Context, state *State) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline canceled",
				"step", step.Name(),
				"reason", err,
			)
			return err
		}
		if err := p.do(ctx, step, state); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) do(ctx context.Context, step Step, state *State) error {
	p.logger.Debug("executing step", "step", step.Name())

	if err := step.Do(ctx, state); err != nil {
		if isCancellation(err) {
			p.logger.Warn("step canceled", "step", step.Name())
		} else {
			p.logger.Error("step failed", "step", step.Name(), "error", err)
		}
		return err
	}

	state.PerformedSteps = append(state.PerformedSteps, step.Name())
	return nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// StepCount returns the number of steps, final steps included.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.final)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.final {
		names = append(names, step.Name())
	}
	return names
}
