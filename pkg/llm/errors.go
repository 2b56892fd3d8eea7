package llm

import "errors"

// Sentinel errors every provider maps its backend failures onto, so callers can
// pick a retry strategy without knowing which backend is behind the interface.
var (
	// ErrRateLimited signals the backend rejected the call for rate/quota
	// reasons. Retrying after a backoff can succeed.
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrTokenLimit signals the payload exceeded the model's context or
	// per-request token budget. Retrying the same payload cannot succeed.
	ErrTokenLimit = errors.New("llm: token limit exceeded")
)

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func IsTokenLimit(err error) bool {
	return errors.Is(err, ErrTokenLimit)
}
