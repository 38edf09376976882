package gamesync

import "errors"

var (
	// ErrRecordRejected marks a raw record without an id. It is skipped, never fatal.
	ErrRecordRejected = errors.New("game record rejected")
	// ErrAccountNotFound is returned when a run is started for an unknown user id.
	ErrAccountNotFound = errors.New("account not found")
)
