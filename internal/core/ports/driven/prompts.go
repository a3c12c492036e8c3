package driven

// PromptStore provides access to generation prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations return the built-in default
	// or an error when there is none.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptAnswer grounds an answer in retrieved facts.
	// The template expects {{facts}} and {{question}} placeholders.
	PromptAnswer = "answer"

	// PromptSummarise creates a summary of document content.
	// The template expects a {{content}} placeholder.
	PromptSummarise = "summarise"
)
