package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the
// binary, or fall back to built-in defaults.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a
	// sensible default or an error, depending on whether the prompt
	// is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// Useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptAnswerSystem is the system prompt for answer synthesis.
	// It instructs the model to answer only from the supplied context
	// and to say so when the context is insufficient. No placeholders.
	PromptAnswerSystem = "answer_system"

	// PromptAnswerUser frames one question. The template expects %s
	// (assembled context) and %s (question) placeholders, in that order.
	PromptAnswerUser = "answer_user"

	// PromptNoContext is the degraded-path template used when no
	// relevant passages were found. It expects a %s placeholder for
	// the question.
	PromptNoContext = "no_context"
)

// PromptStoreAware is an optional interface for services that can use
// custom prompts. Services implementing it can have their templates
// customised by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable
	// prompts. If not set, the service uses hardcoded defaults.
	SetPromptStore(store PromptStore)
}
