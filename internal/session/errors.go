package session

import "errors"

var (
	// ErrStoreUnavailable wraps any failure of a Store read, write or delete.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrMalformedHistory marks persisted data that does not parse back
	// into Turns.
	ErrMalformedHistory = errors.New("malformed stored history")

	// ErrCompletionFailed wraps every failure of the completion call,
	// including turn-timeout expiry.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrSummarizationFailed wraps every failure of the summarization call.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrInvalidHistory is returned by gateways for input that violates
	// their contract.
	ErrInvalidHistory = errors.New("invalid history")
)
