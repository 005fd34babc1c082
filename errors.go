package goGate

import "errors"

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid gate configuration")
	// ErrNoSession is returned by read-only lookups when the session has no record.
	ErrNoSession = errors.New("no session")
	// ErrSessionIDRequired is returned when an operation needs a session id and got none.
	ErrSessionIDRequired = errors.New("session id required")
	// ErrGateClosed is returned by write operations after Close.
	ErrGateClosed = errors.New("gate closed")
)
