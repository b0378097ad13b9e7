// Package tokenizer provides a unified token counting interface: exact
// tiktoken-based counts for OpenAI-family models, and a chars/4 estimator
// for every other model, used to budget the context assembler's token
// allowance.
package tokenizer
