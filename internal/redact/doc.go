// Package redact scrubs secrets from source files before any of their text
// is sent to a completion provider.
//
// Detection is regex based and covers API keys, JWTs, private key headers,
// AWS credentials, bearer tokens and provider-specific token shapes. Files
// whose paths match a path policy are replaced wholesale.
//
// Redaction runs on whole files, before the corpus is built, so a secret can
// never straddle a window boundary and leak half of itself.
package redact
