package driven

import "context"

// GenerationService produces text from a prompt.
// This is an optional service - when nil, answers cannot be generated.
//
// Implementations include:
//   - Ollama (local models, NDJSON streaming)
//   - OpenAI (chat completions streaming)
//   - Anthropic (messages API with server-sent events)
type GenerationService interface {
	// Generate starts a streamed generation. Fragments arrive on the returned
	// channel in order; the channel is closed when generation ends. A fragment
	// with a non-nil Err is always the last one delivered. Cancelling ctx stops
	// the stream and closes the channel.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (<-chan Fragment, error)

	// GenerateComplete blocks until the full text is available.
	GenerateComplete(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Fragment is one piece of streamed output.
type Fragment struct {
	// Text is the generated text delta.
	Text string

	// Err terminates the stream when set.
	Err error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// CollectFragments drains a fragment stream into a single string.
// Adapters without a native blocking call use it for GenerateComplete.
func CollectFragments(ctx context.Context, stream <-chan Fragment) (string, error) {
	var text []byte
	for {
		select {
		case <-ctx.Done():
			return string(text), ctx.Err()
		case f, ok := <-stream:
			if !ok {
				return string(text), nil
			}
			if f.Err != nil {
				return string(text), f.Err
			}
			text = append(text, f.Text...)
		}
	}
}
