package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrLockHeld         = errors.New("lock already held")
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrNoLiveSource     = errors.New("venue has no live source")
	ErrQuoteRejected    = errors.New("quote rejected")
)
