// Package embedding wraps the OpenAI embeddings endpoint behind a small
// Provider interface so the memory package can turn session text into
// vectors without knowing about HTTP, auth headers, or response shapes.
//
// BaseProvider holds the HTTP plumbing (timeout, base URL, batch size,
// error mapping) shared by any future provider; OpenAIProvider is the
// only concrete implementation wired in, since embedding has no viable
// cross-vendor substitute once a dimension count is chosen.
package embedding
