package summarizer

import (
	"context"
	"errors"
	"fmt"
)

// LLMSummarizer builds the prompt, calls the completer and parses the reply
// for a single schema variant.
type LLMSummarizer struct {
	completer Completer
	variant   Variant
}

func New(completer Completer, variant Variant) *LLMSummarizer {
	return &LLMSummarizer{completer: completer, variant: variant}
}

// Variant returns the schema variant this summarizer requests.
func (s *LLMSummarizer) Variant() Variant { return s.variant }

// Summarize always calls the model, even for an empty comment list.
func (s *LLMSummarizer) Summarize(ctx context.Context, keyword string, comments []string) (*Digest, error) {
	prompt := BuildPrompt(keyword, comments, s.variant)

	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		if !errors.Is(err, ErrCompletion) {
			err = fmt.Errorf("%w: %w", ErrCompletion, err)
		}
		return nil, err
	}

	return ParseDigest(raw, s.variant)
}
