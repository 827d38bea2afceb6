package svc

import "errors"

// ErrNoFeedsEnabled is returned when the config enables no feed kinds.
var ErrNoFeedsEnabled = errors.New("no feeds enabled")

// ErrBusInitFailed wraps any failure to open the configured bus transports.
var ErrBusInitFailed = errors.New("bus initialization failed")

// ErrNotSubscribable is returned when no configured transport supports
// subscriptions.
var ErrNotSubscribable = errors.New("bus transport cannot subscribe")
