package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from DocumentStatus
		to   DocumentStatus
		want bool
	}{
		{StatusPending, StatusPartitioning, true},
		{StatusPending, StatusIndexed, true},
		{StatusPartitioning, StatusEmbedding, true},
		{StatusEmbedding, StatusIndexing, true},
		{StatusIndexing, StatusIndexed, true},
		{StatusPending, StatusFailed, true},
		{StatusPartitioning, StatusFailed, true},
		{StatusEmbedding, StatusFailed, true},
		{StatusIndexing, StatusFailed, true},
		{StatusFailed, StatusPending, true},
		{StatusIndexed, StatusFailed, false},
		{StatusFailed, StatusFailed, false},
		{StatusPending, StatusEmbedding, false},
		{StatusPartitioning, StatusIndexed, false},
		{StatusIndexed, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestDocumentStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusIndexed.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusIndexing.IsTerminal())
}

func TestStep_Status(t *testing.T) {
	assert.Equal(t, StatusPartitioning, StepPartition.Status())
	assert.Equal(t, StatusPartitioning, StepSummarize.Status())
	assert.Equal(t, StatusEmbedding, StepEmbed.Status())
	assert.Equal(t, StatusIndexing, StepIndex.Status())
}

func TestParseSteps(t *testing.T) {
	t.Run("empty uses default", func(t *testing.T) {
		steps, err := ParseSteps("")
		require.NoError(t, err)
		assert.Equal(t, PipelineWithoutSummary(), steps)
	})

	t.Run("orders and dedupes", func(t *testing.T) {
		steps, err := ParseSteps("index, embed,Partition,embed,summarize")
		require.NoError(t, err)
		assert.Equal(t, []Step{StepPartition, StepSummarize, StepEmbed, StepIndex}, steps)
	})

	t.Run("partition only", func(t *testing.T) {
		steps, err := ParseSteps("partition")
		require.NoError(t, err)
		assert.Equal(t, []Step{StepPartition}, steps)
	})

	t.Run("unknown step", func(t *testing.T) {
		_, err := ParseSteps("partition,translate")
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})

	t.Run("index without embed", func(t *testing.T) {
		_, err := ParseSteps("partition,index")
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})

	t.Run("embed without partition", func(t *testing.T) {
		_, err := ParseSteps("embed,index")
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})
}

func TestHasStep(t *testing.T) {
	assert.True(t, HasStep(PipelineWithSummary(), StepSummarize))
	assert.False(t, HasStep(PipelineWithoutSummary(), StepSummarize))
}

func TestPipelineJob_RemainingSteps(t *testing.T) {
	job := &PipelineJob{Steps: PipelineWithoutSummary()}
	assert.Equal(t, []Step{StepPartition, StepEmbed, StepIndex}, job.RemainingSteps())

	job.LastCompletedStep = StepEmbed
	assert.Equal(t, []Step{StepIndex}, job.RemainingSteps())

	job.LastCompletedStep = StepIndex
	assert.Empty(t, job.RemainingSteps())
}

func TestPipelineJob_Completed(t *testing.T) {
	job := &PipelineJob{Steps: PipelineWithoutSummary()}
	assert.False(t, job.Completed(StepPartition))

	job.LastCompletedStep = StepEmbed
	assert.True(t, job.Completed(StepPartition))
	assert.True(t, job.Completed(StepEmbed))
	assert.False(t, job.Completed(StepIndex))
}
