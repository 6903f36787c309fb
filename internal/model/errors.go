package model

import "errors"

// Error categories shared across packages. Callers wrap these with
// fmt.Errorf("...: %w", ...) and check them with errors.Is.
var (
	// ErrTransientFetch is a network or HTTP failure talking to an upstream.
	ErrTransientFetch = errors.New("transient fetch failure")
	// ErrDataUnavailable means the upstream has not published the period yet.
	ErrDataUnavailable = errors.New("data not yet available")
	// ErrCacheIO is a failure reading, writing or deleting cache files.
	ErrCacheIO = errors.New("cache io failure")
	// ErrRender is a recovered failure while drawing or presenting a frame.
	ErrRender = errors.New("render failure")
)
