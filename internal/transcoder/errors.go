package transcoder

import "errors"

var (
	// ErrConfiguration marks a channel whose invocation settings are
	// malformed. Nothing is spawned and nothing is cached.
	ErrConfiguration = errors.New("invalid channel configuration")

	// ErrResolution marks a failed source resolution. It is not retried
	// automatically; the next request starts over.
	ErrResolution = errors.New("source resolution failed")
)
