// Package cache provides a file-based cache for completion responses.
//
// Cache entries are keyed by an xxh3 hash of the provider name, model, system
// prompt and window prompt. Each entry stores the raw response text with a
// creation timestamp and a TTL. Expired entries are skipped on read and
// removed during cache-clear operations.
//
// The default cache directory is $XDG_CACHE_HOME/codescan (or the
// OS-appropriate equivalent). Prompts have already been through secret
// redaction before they are used as keys.
package cache
