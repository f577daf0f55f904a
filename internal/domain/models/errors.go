package models

import "errors"

var (
	// ErrNotFound marks reads of untracked tickers.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed caller input.
	ErrValidation = errors.New("validation error")
	// ErrUpstreamUnavailable marks failures of market data, recommendation channel or news source.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
