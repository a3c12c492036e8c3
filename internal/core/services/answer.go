package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
	"github.com/custodia-labs/ragmem/internal/logger"
	"github.com/custodia-labs/ragmem/internal/metrics"
	"github.com/custodia-labs/ragmem/internal/postprocessors/partitioner"
)

// Prompt is an assembled generation prompt and the context it carries.
type Prompt struct {
	// Text is the filled answer template.
	Text string

	// Used holds the results that fit the token budget, best first.
	Used []domain.SearchResult

	// Sources are the distinct documents of Used, in rank order.
	Sources []domain.Source
}

// AnswerAssembler formats retrieved chunks and a question into a prompt.
type AnswerAssembler struct {
	prompts driven.PromptStore
}

// NewAnswerAssembler creates an assembler reading the answer template from prompts.
func NewAnswerAssembler(prompts driven.PromptStore) *AnswerAssembler {
	return &AnswerAssembler{prompts: prompts}
}

// Assemble adds results to the prompt highest score first until the next
// chunk would exceed budget tokens. That chunk and every lower ranked one
// are dropped. A prompt with no Used results must not be sent to a generator.
func (a *AnswerAssembler) Assemble(question string, results []domain.SearchResult, budget int) (*Prompt, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("%w: answer token budget must be positive, got %d", domain.ErrInvalidArgument, budget)
	}

	ranked := slices.Clone(results)
	slices.SortStableFunc(ranked, func(x, y domain.SearchResult) int {
		switch {
		case x.Score > y.Score:
			return -1
		case x.Score < y.Score:
			return 1
		}
		return 0
	})

	p := &Prompt{}
	var facts strings.Builder
	seen := make(map[string]bool)
	used := 0
	for _, r := range ranked {
		tokens := partitioner.CountTokens(r.Chunk.Content)
		if used+tokens > budget {
			logger.Debug("Context budget of %d tokens reached, dropping %d of %d chunks",
				budget, len(ranked)-len(p.Used), len(ranked))
			break
		}
		used += tokens
		p.Used = append(p.Used, r)

		src := sourceOf(r)
		fmt.Fprintf(&facts, "==== [File:%s;Relevance:%.1f%%]:\n%s\n", src.SourceName(), r.Score*100, r.Chunk.Content)
		if !seen[src.DocumentID] {
			seen[src.DocumentID] = true
			p.Sources = append(p.Sources, src)
		}
	}
	if len(p.Used) == 0 {
		return p, nil
	}

	template, err := a.prompts.Load(driven.PromptAnswer)
	if err != nil {
		return nil, fmt.Errorf("load answer prompt: %w", err)
	}
	p.Text = strings.NewReplacer("{{facts}}", facts.String(), "{{question}}", question).Replace(template)
	return p, nil
}

func sourceOf(r domain.SearchResult) domain.Source {
	return domain.Source{
		DocumentID: r.Document.ID,
		Path:       r.Document.Path,
		Title:      r.Document.Title,
		Relevance:  r.Score,
	}
}

// AnswerService retrieves context for a question and streams a grounded answer.
type AnswerService struct {
	search     *SearchService
	assembler  *AnswerAssembler
	generator  driven.GenerationService
	settings   domain.SearchSettings
	generation domain.GenerationSettings
}

// NewAnswerService creates an answer service. generator may be nil, in
// which case questions with matching context fail with ErrGenerationUnavailable.
func NewAnswerService(
	search *SearchService,
	assembler *AnswerAssembler,
	generator driven.GenerationService,
	settings domain.SearchSettings,
	generation domain.GenerationSettings,
) *AnswerService {
	return &AnswerService{
		search:     search,
		assembler:  assembler,
		generator:  generator,
		settings:   settings,
		generation: generation,
	}
}

// AskStream retrieves context and starts generation. When no context
// survives retrieval and truncation, the stream yields NoAnswer and the
// generator is never called.
func (s *AnswerService) AskStream(ctx context.Context, question string) (driving.AnswerStream, error) {
	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidArgument)
	}

	ctx, span := metrics.StartSpan(ctx, "ragmem.Ask")
	fail := func(err error) (driving.AnswerStream, error) {
		metrics.Answers.WithLabelValues(metrics.OutcomeError).Inc()
		metrics.EndSpan(span, err)
		return nil, err
	}

	results, err := s.search.Search(ctx, question, s.settings.MaxMatches)
	if err != nil {
		return fail(err)
	}
	prompt, err := s.assembler.Assemble(question, results, s.contextBudget())
	if err != nil {
		return fail(err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream := &answerStream{
		ctx:      streamCtx,
		cancel:   cancel,
		span:     span,
		question: question,
		prompt:   prompt,
		start:    start,
	}
	if len(prompt.Used) == 0 {
		logger.Debug("No context for %q, answering %s", question, domain.NoAnswer)
		return stream, nil
	}
	if s.generator == nil {
		cancel()
		return fail(domain.ErrGenerationUnavailable)
	}

	logger.Debug("Prompt: %d chunks from %d sources", len(prompt.Used), len(prompt.Sources))
	fragments, err := s.generator.Generate(streamCtx, prompt.Text, s.generateOptions())
	if err != nil {
		cancel()
		if !errors.Is(err, domain.ErrGenerationService) {
			err = fmt.Errorf("%w: %w", domain.ErrGenerationService, err)
		}
		return fail(err)
	}
	stream.fragments = fragments
	return stream, nil
}

// Ask blocks until the full answer is generated.
func (s *AnswerService) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	stream, err := s.AskStream(ctx, question)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	for _, err := range stream.Fragments() {
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return stream.Answer(), nil
}

func (s *AnswerService) contextBudget() int {
	app := domain.DefaultAppSettings()
	app.Search, app.Generation = s.settings, s.generation
	return app.ContextBudget()
}

func (s *AnswerService) generateOptions() driven.GenerateOptions {
	stop := s.generation.Stop
	if stop == nil {
		stop = domain.DefaultAppSettings().Generation.Stop
	}
	maxTokens := s.generation.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.settings.AnswerTokens
	}
	return driven.GenerateOptions{
		MaxTokens:   maxTokens,
		Temperature: s.generation.Temperature,
		StopWords:   stop,
	}
}

// answerStream adapts a generator fragment channel to driving.AnswerStream.
// A nil fragments channel yields NoAnswer.
type answerStream struct {
	ctx       context.Context
	cancel    context.CancelFunc
	span      trace.Span
	fragments <-chan driven.Fragment
	question  string
	prompt    *Prompt
	start     time.Time

	mu       sync.Mutex
	text     strings.Builder
	consumed bool
	elapsed  time.Duration
	once     sync.Once
}

func (a *answerStream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		a.mu.Lock()
		if a.consumed {
			a.mu.Unlock()
			return
		}
		a.consumed = true
		a.mu.Unlock()

		if a.fragments == nil {
			a.append(domain.NoAnswer)
			a.finish(nil)
			yield(domain.NoAnswer, nil)
			return
		}

		for {
			select {
			case <-a.ctx.Done():
				a.finish(a.ctx.Err())
				return
			case f, ok := <-a.fragments:
				if !ok {
					a.finish(nil)
					return
				}
				if err := a.ctx.Err(); err != nil {
					a.finish(err)
					return
				}
				if f.Err != nil {
					err := f.Err
					if !errors.Is(err, domain.ErrGenerationService) && !errors.Is(err, context.Canceled) {
						err = fmt.Errorf("%w: %w", domain.ErrGenerationService, err)
					}
					a.finish(err)
					yield("", err)
					return
				}
				a.append(f.Text)
				if !yield(f.Text, nil) {
					a.finish(nil)
					return
				}
			}
		}
	}
}

func (a *answerStream) append(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.text.WriteString(s)
}

// finish records the outcome once and releases the generation context.
func (a *answerStream) finish(err error) {
	a.once.Do(func() {
		a.mu.Lock()
		a.elapsed = time.Since(a.start)
		text := strings.TrimSpace(a.text.String())
		a.mu.Unlock()

		outcome := metrics.OutcomeAnswered
		switch {
		case err != nil:
			outcome = metrics.OutcomeError
		case text == "" || text == domain.NoAnswer:
			outcome = metrics.OutcomeNotFound
		}
		metrics.Answers.WithLabelValues(outcome).Inc()
		metrics.EndSpan(a.span, err)
		a.cancel()
		logger.Debug("Answer finished in %s (%s)", a.elapsed.Round(time.Millisecond), outcome)
	})
}

func (a *answerStream) Sources() []domain.Source {
	return a.prompt.Sources
}

func (a *answerStream) Answer() *domain.Answer {
	a.mu.Lock()
	defer a.mu.Unlock()
	elapsed := a.elapsed
	if elapsed == 0 {
		elapsed = time.Since(a.start)
	}
	return &domain.Answer{
		Question: a.question,
		Text:     strings.TrimSpace(a.text.String()),
		Sources:  a.prompt.Sources,
		Context:  a.prompt.Used,
		Elapsed:  elapsed,
	}
}

func (a *answerStream) Close() {
	a.finish(context.Canceled)
}
