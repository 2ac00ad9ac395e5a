// Package marketdata holds what the market data providers share.
package marketdata

import "errors"

var (
	// ErrMissingField means the provider answered but the payload lacks the expected key.
	ErrMissingField = errors.New("marketdata: missing field")
	// ErrThrottled means the provider answered with a usage notice instead of data.
	ErrThrottled = errors.New("marketdata: provider throttled the request")
)

// Kind names the two data points fetched per pair.
type Kind string

const (
	KindRSI  Kind = "rsi"
	KindRate Kind = "rate"
)
