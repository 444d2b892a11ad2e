package saga

import (
	"context"
	"log/slog"
)

// Step is a single unit of work in a compensating sequence. Each step must
// know how to undo its own effects.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Sequence runs steps in order. If a step fails, every previously completed
// step is compensated in LIFO order. This is a best-effort sequence, not a
// transaction: a compensation failure is logged and leaves the remaining
// compensations to run anyway.
type Sequence struct {
	name  string
	steps []Step
}

func NewSequence(name string, steps []Step) *Sequence {
	return &Sequence{name: name, steps: steps}
}

func (s *Sequence) Run(ctx context.Context) error {
	var completed []Step

	for _, step := range s.steps {
		if err := step.Execute(ctx); err != nil {
			slog.ErrorContext(ctx, "saga step failed, rolling back",
				"saga", s.name, "step", step.Name(), "error", err)
			s.rollback(ctx, completed)
			return err
		}
		completed = append(completed, step)
	}

	return nil
}

func (s *Sequence) rollback(ctx context.Context, completed []Step) {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if err := step.Compensate(ctx); err != nil {
			slog.ErrorContext(ctx, "saga compensation failed",
				"saga", s.name, "step", step.Name(), "error", err)
		}
	}
}
