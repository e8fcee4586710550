// Package domain defines the core types shared across the engine: the Note
// model, the session Identity, and the sentinel errors. Interfaces live on
// the consumer side; this package carries data and contracts only.
package domain
