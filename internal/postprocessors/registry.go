package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

// Builder constructs the processor for a step from the resolved settings.
type Builder func(settings domain.AppSettings) (driven.PostProcessor, error)

// Registry maps chunk producing pipeline steps to processor builders.
type Registry struct {
	builders map[domain.Step]Builder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: map[domain.Step]Builder{}}
}

// Register binds a builder to step, replacing any earlier one.
func (r *Registry) Register(step domain.Step, b Builder) {
	r.builders[step] = b
}

// Has reports whether step has a processor.
func (r *Registry) Has(step domain.Step) bool {
	_, ok := r.builders[step]
	return ok
}

// Steps lists the registered steps in pipeline order.
func (r *Registry) Steps() []domain.Step {
	var steps []domain.Step
	for _, step := range domain.PipelineWithSummary() {
		if r.Has(step) {
			steps = append(steps, step)
		}
	}
	return steps
}

// Build constructs the processor for step.
func (r *Registry) Build(step domain.Step, settings domain.AppSettings) (driven.PostProcessor, error) {
	b, ok := r.builders[step]
	if !ok {
		return nil, fmt.Errorf("%w: no processor for step %q", domain.ErrInvalidArgument, step)
	}
	proc, err := b(settings)
	if err != nil {
		return nil, fmt.Errorf("build %s processor: %w", step, err)
	}
	return proc, nil
}

// Pipeline chains the processors for those of steps that are registered,
// in pipeline order. Steps without a processor (embed, index) are skipped.
// It returns nil when no step produces chunks.
func (r *Registry) Pipeline(steps []domain.Step, settings domain.AppSettings) (*Pipeline, error) {
	ordered, err := domain.NormaliseSteps(steps)
	if err != nil {
		return nil, err
	}

	var procs []driven.PostProcessor
	for _, step := range ordered {
		if !r.Has(step) {
			continue
		}
		proc, err := r.Build(step, settings)
		if err != nil {
			return nil, err
		}
		procs = append(procs, proc)
	}
	if len(procs) == 0 {
		return nil, nil
	}
	return NewPipeline(procs...), nil
}
