package main

import "errors"

var (
	// ErrParse marks malformed human input (hashrate strings, command
	// arguments). Callers reply with a plain message.
	ErrParse = errors.New("parse error")
	// ErrDomain marks inputs that parse but make no sense for the
	// computation, e.g. a zero network hashrate.
	ErrDomain = errors.New("domain error")
	// ErrChainUnavailable wraps every kaspad RPC failure that is not a timeout.
	ErrChainUnavailable = errors.New("chain unavailable")
	// ErrTimeout is returned when an external call exceeds its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrMalformedEvent is internal to the donation watcher and never reaches
	// a sink or a user.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrPriceUnavailable covers non-200 responses and missing fields from
	// the price oracle.
	ErrPriceUnavailable = errors.New("price unavailable")
)
