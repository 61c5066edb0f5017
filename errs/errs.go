// Package errs holds the error kinds shared by every stage of the link.
// Stages wrap these with the stage name and the violated invariant, so
// callers can match on kind with errors.Is.
package errs

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrLengthMismatch      = errors.New("length mismatch")
	ErrConstellationLookup = errors.New("constellation lookup failure")
)
