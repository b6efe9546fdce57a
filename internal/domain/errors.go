package domain

import "errors"

var (
	// ErrInvalidArgument signals malformed caller input. It is the only pipeline error
	// that reaches the caller.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrProviderUnavailable signals that a capability probe reported the provider as unusable.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderError signals a failed downstream call.
	ErrProviderError = errors.New("provider error")
	// ErrProviderContractViolation signals a downstream response that breaks its output contract
	// (wrong count, missing index, non-finite value).
	ErrProviderContractViolation = errors.New("provider contract violation")
	// ErrCacheCorruption signals a cached value that cannot be decoded.
	ErrCacheCorruption = errors.New("cache corruption")
)
