package port

import "errors"

// Sentinel errors used across ports.
var (
	// ErrRetrieval marks a failed repository fetch. It is fatal to the whole
	// ingestion attempt; the previously stored generation stays untouched.
	ErrRetrieval = errors.New("repository retrieval failed")

	// ErrRepoNotFound means the identity key has no ingested generation.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrVectorUnavailable is the declared capability-unavailable condition:
	// the vector search path was never successfully initialized. Distinct
	// from an empty result set.
	ErrVectorUnavailable = errors.New("vector search unavailable")

	ErrInvalidRepoURL = errors.New("invalid repository URL")
)
