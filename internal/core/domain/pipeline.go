package domain

import (
	"fmt"
	"strings"
	"time"
)

// DocumentStatus is a document's position in the ingestion state machine.
type DocumentStatus string

const (
	StatusPending      DocumentStatus = "pending"
	StatusPartitioning DocumentStatus = "partitioning"
	StatusEmbedding    DocumentStatus = "embedding"
	StatusIndexing     DocumentStatus = "indexing"
	StatusIndexed      DocumentStatus = "indexed"
	StatusFailed       DocumentStatus = "failed"
)

// IsTerminal reports whether no further transitions are expected.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusIndexed || s == StatusFailed
}

// CanTransition reports whether moving from s to next is a legal transition.
// Failed is reachable from every non-terminal state. A failed document may
// be restarted, which moves it back to pending.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	if next == StatusFailed {
		return !s.IsTerminal()
	}
	switch s {
	case StatusPending:
		return next == StatusPartitioning || next == StatusIndexed
	case StatusPartitioning:
		return next == StatusEmbedding
	case StatusEmbedding:
		return next == StatusIndexing
	case StatusIndexing:
		return next == StatusIndexed
	case StatusFailed:
		return next == StatusPending
	}
	return false
}

// Step is one stage of the ingestion pipeline.
type Step string

const (
	StepPartition Step = "partition"
	StepSummarize Step = "summarize"
	StepEmbed     Step = "embed"
	StepIndex     Step = "index"
)

// stepOrder is the execution order of pipeline steps.
var stepOrder = []Step{StepPartition, StepSummarize, StepEmbed, StepIndex}

// PipelineWithoutSummary is the default step set.
func PipelineWithoutSummary() []Step {
	return []Step{StepPartition, StepEmbed, StepIndex}
}

// PipelineWithSummary adds the summarize step to the default step set.
func PipelineWithSummary() []Step {
	return []Step{StepPartition, StepSummarize, StepEmbed, StepIndex}
}

// Status returns the document status that corresponds to running the step.
func (s Step) Status() DocumentStatus {
	switch s {
	case StepPartition, StepSummarize:
		return StatusPartitioning
	case StepEmbed:
		return StatusEmbedding
	case StepIndex:
		return StatusIndexing
	}
	return StatusPending
}

// ParseSteps parses a comma separated step list and returns it in execution order.
func ParseSteps(raw string) ([]Step, error) {
	if strings.TrimSpace(raw) == "" {
		return PipelineWithoutSummary(), nil
	}
	var steps []Step
	for _, part := range strings.Split(raw, ",") {
		steps = append(steps, Step(strings.TrimSpace(strings.ToLower(part))))
	}
	return NormaliseSteps(steps)
}

// NormaliseSteps validates a step set, removes duplicates and sorts it into
// execution order. Indexing requires embedding, and embedding requires partitioning.
func NormaliseSteps(steps []Step) ([]Step, error) {
	if len(steps) == 0 {
		return PipelineWithoutSummary(), nil
	}
	seen := make(map[Step]bool, len(steps))
	for _, s := range steps {
		if !isKnownStep(s) {
			return nil, fmt.Errorf("%w: unknown pipeline step %q", ErrInvalidArgument, s)
		}
		seen[s] = true
	}
	if seen[StepIndex] && !seen[StepEmbed] {
		return nil, fmt.Errorf("%w: step %q requires %q", ErrInvalidArgument, StepIndex, StepEmbed)
	}
	if (seen[StepEmbed] || seen[StepSummarize]) && !seen[StepPartition] {
		return nil, fmt.Errorf("%w: steps require %q", ErrInvalidArgument, StepPartition)
	}

	out := make([]Step, 0, len(seen))
	for _, s := range stepOrder {
		if seen[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

// HasStep reports whether steps contains s.
func HasStep(steps []Step, s Step) bool {
	for _, v := range steps {
		if v == s {
			return true
		}
	}
	return false
}

func isKnownStep(s Step) bool {
	for _, v := range stepOrder {
		if v == s {
			return true
		}
	}
	return false
}

// JobStatus is the lifecycle of a pipeline job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// PipelineJob tracks the ingestion of one document through ordered steps.
// LastCompletedStep lets a re-run resume instead of restart.
type PipelineJob struct {
	// ID is a random job identifier.
	ID string `json:"id" yaml:"id"`

	// DocumentID is the document being ingested.
	DocumentID string `json:"document_id" yaml:"document_id"`

	// Path is the source path.
	Path string `json:"path" yaml:"path"`

	// Steps is the requested step set in execution order.
	Steps []Step `json:"steps" yaml:"steps"`

	// LastCompletedStep is empty until the first step finishes.
	LastCompletedStep Step `json:"last_completed_step,omitempty" yaml:"last_completed_step,omitempty"`

	// Status is the job state.
	Status JobStatus `json:"status" yaml:"status"`

	// Attempts counts embedding attempts across runs.
	Attempts int `json:"attempts" yaml:"attempts"`

	// Error is the last failure message.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// RemainingSteps returns the steps after LastCompletedStep.
func (j *PipelineJob) RemainingSteps() []Step {
	if j.LastCompletedStep == "" {
		return j.Steps
	}
	for i, s := range j.Steps {
		if s == j.LastCompletedStep {
			return j.Steps[i+1:]
		}
	}
	return j.Steps
}

// Completed reports whether step has already been checkpointed.
func (j *PipelineJob) Completed(step Step) bool {
	if j.LastCompletedStep == "" {
		return false
	}
	for _, s := range j.Steps {
		if s == step {
			return true
		}
		if s == j.LastCompletedStep {
			return false
		}
	}
	return false
}
