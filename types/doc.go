/*
Package types provides the shared value types used across the plant-care
core.

It is the lowest-level package in the module and depends on nothing else
internally, so gateway, router, ledger, and pipeline packages can all import
it without creating cycles.

# Core types

  - Message / Role / ImageContent — conversation turns, including the
    base64/URL image attachments used by the identification pipeline.
  - TokenUsage — prompt/completion/total token counts plus the cost
    attributed to a single gateway call.
  - Error / ErrorCode — structured error carrying an HTTP status, a
    retryable flag, and the originating provider name.
*/
package types
