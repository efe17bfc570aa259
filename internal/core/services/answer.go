package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
	"github.com/veritas-labs/lexquery/internal/logger"
	"github.com/veritas-labs/lexquery/internal/retry"
)

// Ensure AnswerService implements the interfaces.
var (
	_ driving.AskService      = (*AnswerService)(nil)
	_ driven.PromptStoreAware = (*AnswerService)(nil)
)

// Built-in prompt templates, used when no prompt store is injected.
// The file-backed store seeds the same text as editable files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
const (
	defaultAnswerSystemPrompt = `You are a legal research assistant. You answer questions using only the document excerpts supplied in the conversation.

Rules:
- Base every statement on the supplied excerpts. Never draw on outside knowledge of the law.
- Cite excerpts by their number, e.g. [2], wherever a statement relies on one.
- Quote clause and section identifiers exactly as they appear in the excerpts.
- If the excerpts do not contain enough information to answer, say so plainly instead of guessing.
- Format your response using Markdown for readability.`

	defaultAnswerUserPrompt = `Answer the question below using only the numbered excerpts.

Excerpts:
%s

Question: %s

Answer:`

	defaultNoContextPrompt = `I could not find any passages in the indexed documents relevant to the question: %s

Say that the indexed documents do not cover this question, and suggest the user ingest the relevant documents or rephrase. Do not attempt to answer from general knowledge.`
)

// Static degraded answers, used when the generation backend cannot
// even phrase the apology.
const (
	noContextFallbackText = "I could not find anything in the indexed documents that addresses this question. " +
		"Try rephrasing it, or ingest the documents that cover this topic."

	unavailableFallbackText = "I cannot answer right now because a required backend is unreachable. " +
		"Please try again shortly."
)

// AnswerConfig tunes answer synthesis. Zero values fall back to the
// application defaults.
type AnswerConfig struct {
	// MaxTokens bounds the generated answer length.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxRetries caps generation retries for transient failures.
	MaxRetries int

	// HistoryTurns bounds how many prior exchanges enter the prompt.
	HistoryTurns int

	// DefaultK is the retrieval count the thin-evidence penalty
	// measures against when the request does not set one.
	DefaultK int

	// Confidence tunes the confidence heuristic.
	Confidence domain.ConfidenceSettings
}

// AnswerService answers questions against the corpus: retrieve,
// assemble, synthesize. Every dependency outage surfaces as a
// degraded Answer with confidence 0 and no sources, never as an
// error or a crash.
type AnswerService struct {
	retriever   driving.RetrievalService
	assembler   *ContextAssembler
	llm         driven.LLMService
	promptStore driven.PromptStore
	policy      retry.Policy
	cfg         AnswerConfig
}

// NewAnswerService creates an answer service. The llm may be nil;
// Ask then degrades to an extractive answer built from the retrieved
// passages.
func NewAnswerService(
	retriever driving.RetrievalService,
	assembler *ContextAssembler,
	llm driven.LLMService,
	cfg AnswerConfig,
) *AnswerService {
	defaults := domain.DefaultAppSettings()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.LLM.MaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaults.LLM.Temperature
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.LLM.MaxRetries
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = defaults.Context.HistoryTurns
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = defaults.Retrieval.K
	}
	if cfg.Confidence.Ceil <= cfg.Confidence.Floor {
		cfg.Confidence = defaults.Confidence
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	policy.RetryIf = generationRetryable

	return &AnswerService{
		retriever: retriever,
		assembler: assembler,
		llm:       llm,
		policy:    policy,
		cfg:       cfg,
	}
}

// SetPromptStore sets the prompt store for loading customisable
// prompts. Without one the built-in templates are used.
func (s *AnswerService) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// generationRetryable reports whether a generation failure is worth
// another attempt. Cancellation is the caller's decision and is
// never retried.
func generationRetryable(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Ask runs the full pipeline for one question.
func (s *AnswerService) Ask(ctx context.Context, question string, opts domain.AskOptions) (*domain.Answer, error) {
	logger.Section("Ask")
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	logger.Debug("Question: %q", question)

	passages, err := s.retriever.Retrieve(ctx, question, opts.Retrieve)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoResults):
			logger.Info("Ask: nothing retrieved, answering without context")
			return s.noContextAnswer(ctx, question), nil
		case domain.IsDegradable(err):
			logger.Warn("Ask: retrieval degraded: %v", err)
			return degradedAnswer(unavailableFallbackText), nil
		default:
			return nil, err
		}
	}

	assembled := s.assembler.Assemble(passages, 0)
	if assembled.Text == "" {
		// Budget too tight for even one sentence of context.
		logger.Warn("Ask: %d passages retrieved but none fit the context budget", len(passages))
		return s.noContextAnswer(ctx, question), nil
	}

	k := opts.Retrieve.K
	if k <= 0 {
		k = s.cfg.DefaultK
	}
	confidence := s.confidence(assembled, k)

	if s.llm == nil {
		logger.Info("Ask: no generation provider, returning extractive answer")
		return s.extractiveAnswer(assembled, confidence), nil
	}

	text, err := s.generate(ctx, question, assembled.Text, opts.History)
	if err != nil {
		if errors.Is(err, domain.ErrGenerationUnavailable) {
			logger.Warn("Ask: generation failed after retries: %v", err)
			return degradedAnswer(unavailableFallbackText), nil
		}
		return nil, err
	}

	logger.Info("Ask: answered with %d sources, confidence %.2f", len(assembled.Sources), confidence)
	return &domain.Answer{
		Text:       text,
		Confidence: confidence,
		Sources:    assembled.Sources,
		Model:      s.llm.ModelName(),
	}, nil
}

// generate synthesizes the answer text over the assembled context,
// retrying transient backend failures with backoff.
func (s *AnswerService) generate(
	ctx context.Context, question, contextText string, history []domain.ChatTurn,
) (string, error) {
	system := s.prompt(driven.PromptAnswerSystem, defaultAnswerSystemPrompt)
	userTemplate := s.prompt(driven.PromptAnswerUser, defaultAnswerUserPrompt)

	bounded := boundHistory(history, s.cfg.HistoryTurns)
	messages := make([]driven.ChatMessage, 0, len(bounded)+2)
	messages = append(messages, driven.ChatMessage{Role: "system", Content: system})
	for _, turn := range bounded {
		messages = append(messages, driven.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, driven.ChatMessage{
		Role:    "user",
		Content: fmt.Sprintf(userTemplate, contextText, question),
	})

	reply, err := retry.DoValue(ctx, s.policy, func() (string, error) {
		return s.llm.Chat(ctx, messages, driven.ChatOptions{
			MaxTokens:   s.cfg.MaxTokens,
			Temperature: s.cfg.Temperature,
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationUnavailable, err)
	}

	return strings.TrimSpace(reply), nil
}

// noContextAnswer produces the degraded answer for a question the
// corpus has nothing on. The generation backend phrases it when
// reachable; one attempt only, the static fallback covers failure.
func (s *AnswerService) noContextAnswer(ctx context.Context, question string) *domain.Answer {
	answer := degradedAnswer(noContextFallbackText)

	if s.llm == nil {
		return answer
	}

	template := s.prompt(driven.PromptNoContext, defaultNoContextPrompt)
	text, err := s.llm.Generate(ctx, fmt.Sprintf(template, question), driven.GenerateOptions{
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Debug("Ask: apology generation failed, using static text: %v", err)
		return answer
	}

	answer.Text = strings.TrimSpace(text)
	answer.Model = s.llm.ModelName()
	return answer
}

// extractiveAnswer quotes the assembled passages directly when no
// generation provider is configured. Retrieval evidence still backs
// the confidence score and the citations.
func (s *AnswerService) extractiveAnswer(assembled *domain.AssembledContext, confidence float64) *domain.Answer {
	return &domain.Answer{
		Text: "No generation provider is configured. The most relevant excerpts are quoted below.\n\n" +
			assembled.Text,
		Confidence: confidence,
		Sources:    assembled.Sources,
		Degraded:   true,
	}
}

// confidence estimates answer reliability from the similarities of
// the passages actually used: their mean rescaled over the configured
// band, discounted by found/k when evidence is thin.
func (s *AnswerService) confidence(assembled *domain.AssembledContext, k int) float64 {
	found := len(assembled.Similarities)
	if found == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < found; i++ {
		sum += assembled.Similarities[i]
	}
	mean := sum / float64(found)

	c := s.cfg.Confidence
	score := clamp01((mean - c.Floor) / (c.Ceil - c.Floor))

	if c.ThinEvidencePenalty && k > 0 && found < k {
		score *= float64(found) / float64(k)
	}

	return score
}

// degradedAnswer builds the degraded envelope: apology text,
// confidence 0, no sources.
func degradedAnswer(text string) *domain.Answer {
	return &domain.Answer{
		Text:       text,
		Confidence: 0,
		Sources:    []domain.SourceRef{},
		Degraded:   true,
	}
}

// boundHistory keeps the most recent turns of the conversation. One
// turn is a user message and its reply.
func boundHistory(history []domain.ChatTurn, turns int) []domain.ChatTurn {
	if turns <= 0 {
		return nil
	}
	limit := turns * 2
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// prompt loads a template from the prompt store, falling back to the
// built-in default when the store is absent or the load fails.
func (s *AnswerService) prompt(name, fallback string) string {
	if s.promptStore == nil {
		return fallback
	}
	text, err := s.promptStore.Load(name)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Debug("Prompt %q unavailable, using built-in default: %v", name, err)
		return fallback
	}
	return text
}

// clamp01 clamps v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
