// Package llmcorrect implements transcript correction on top of an
// [llm.Provider].
//
// The [Corrector] has two prompts. In reference-guided mode the model is asked
// to copy spellings from the reference sentence onto the machine transcript
// and change nothing else. In reference-free mode it only fixes spelling
// mistakes while keeping the colloquial wording. The reply is used verbatim
// after whitespace trimming and removal of stray code fences.
package llmcorrect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/sttdata/internal/transcript"
	llm "github.com/MrWong99/sttdata/pkg/provider/llm"
)

const (
	defaultTemperature = 0.1
)

// ErrEmptyResponse is returned when the model replies with no text.
var ErrEmptyResponse = errors.New("llm corrector: empty response")

const guidedPromptTemplate = `I have two sentences: a colloquial sentence and a reference sentence.
Your task is to EXACTLY match the spellings from the reference sentence.
Do not make any corrections beyond matching the reference sentence exactly, even if you think a word is misspelled.
If a word appears the same way in both sentences, do not change it.
Colloquial sentence: %s
Reference sentence: %s
Give me only the corrected sentence that exactly matches the reference, without any explanation`

const freePromptTemplate = `I have a colloquial sentence that may contain spelling mistakes.
Please correct any spelling mistakes while preserving the meaning and colloquial nature of the text.
Only fix spelling errors - do not change the style, word choice, or grammar.
Sentence: %s
Give me only the corrected sentence without any explanation`

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithTemperature sets the LLM sampling temperature. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(c *Corrector) {
		c.temperature = temp
	}
}

// WithMaxTokens caps the completion length. Zero keeps the provider default.
func WithMaxTokens(n int) Option {
	return func(c *Corrector) {
		c.maxTokens = n
	}
}

// Corrector uses an [llm.Provider] to correct segment transcripts. It is
// safe for concurrent use.
//
// To use a specific model, construct the [llm.Provider] with that model
// rather than overriding it per request.
type Corrector struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

var _ transcript.Corrector = (*Corrector)(nil)

// New returns a new [Corrector] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Corrector {
	c := &Corrector{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CorrectWithReference implements [transcript.Corrector].
func (c *Corrector) CorrectWithReference(ctx context.Context, inference, reference string) (string, error) {
	return c.complete(ctx, GuidedPrompt(inference, reference))
}

// CorrectFree implements [transcript.Corrector].
func (c *Corrector) CorrectFree(ctx context.Context, inference string) (string, error) {
	return c.complete(ctx, FreePrompt(inference))
}

// GuidedPrompt renders the reference-guided prompt.
func GuidedPrompt(inference, reference string) string {
	return fmt.Sprintf(guidedPromptTemplate, inference, reference)
}

// FreePrompt renders the reference-free prompt.
func FreePrompt(inference string) string {
	return fmt.Sprintf(freePromptTemplate, inference)
}

func (c *Corrector) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm corrector: complete: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	text := stripMarkdown(resp.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// stripMarkdown trims whitespace and removes a code fence some models wrap
// single-sentence replies in.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```"); ok {
		if nl := strings.IndexByte(after, '\n'); nl >= 0 {
			// Drop an optional language tag on the opening fence.
			after = after[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(after), "```")
	}
	return strings.TrimSpace(s)
}
