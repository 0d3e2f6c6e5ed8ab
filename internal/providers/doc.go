// Package providers implements the Completer interface for each supported LLM
// provider.
//
// Supported providers: OpenAI, Azure OpenAI deployments, Anthropic, Google
// Gemini (through the genai SDK), and Ollama / LM Studio for local models.
//
// Providers make exactly one remote call per Complete. They do not retry;
// instead every failure is returned as an *Error carrying a Kind
// (RateLimited, Timeout, TransientServiceError, InvalidRequest) and, when the
// server supplied one, a Retry-After hint. Retry policy lives with the caller.
//
// HTTP clients are injectable so tests can redirect calls to local httptest
// servers without making live API requests.
//
// Use [New] to obtain a Completer by provider name and model string, and
// [NewCached] to put the response cache in front of one.
package providers
