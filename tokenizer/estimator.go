package tokenizer

import (
	"fmt"
	"unicode/utf8"
)

// EstimatorTokenizer is a character-count-based token estimator, used for
// every model that doesn't have an exact tokenizer registered. It counts
// tokens as ceil(runeCount / charsPerToken), the same rough heuristic
// every major provider's docs quote for English prose.
type EstimatorTokenizer struct {
	model     string
	maxTokens int

	charsPerToken float64
}

// NewEstimatorTokenizer creates a generic estimator using 4 characters per
// token, the ratio this module budgets context windows against.
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &EstimatorTokenizer{
		model:         model,
		maxTokens:     maxTokens,
		charsPerToken: 4.0,
	}
}

// WithCharsPerToken overrides the default chars-per-token ratio.
func (e *EstimatorTokenizer) WithCharsPerToken(ratio float64) *EstimatorTokenizer {
	e.charsPerToken = ratio
	return e
}

func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	chars := utf8.RuneCountInString(text)
	tokens := (chars + int(e.charsPerToken) - 1) / int(e.charsPerToken)
	if tokens == 0 {
		tokens = 1
	}
	return tokens, nil
}

func (e *EstimatorTokenizer) CountMessages(messages []Message) (int, error) {
	total := 0
	for _, msg := range messages {
		tokens, err := e.CountTokens(msg.Content)
		if err != nil {
			return 0, err
		}
		total += tokens + 4
	}
	total += 3
	return total, nil
}

func (e *EstimatorTokenizer) Encode(text string) ([]int, error) {
	count, err := e.CountTokens(text)
	if err != nil {
		return nil, err
	}
	tokens := make([]int, count)
	for i := range tokens {
		tokens[i] = i
	}
	return tokens, nil
}

func (e *EstimatorTokenizer) Decode(_ []int) (string, error) {
	return "", fmt.Errorf("estimator tokenizer does not support decode")
}

func (e *EstimatorTokenizer) MaxTokens() int {
	return e.maxTokens
}

func (e *EstimatorTokenizer) Name() string {
	return "estimator"
}
