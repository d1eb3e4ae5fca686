package errorutil

import "errors"

// ErrDataIntegrity is a base error type to use for failures that are due to
// unrecoverable data integrity issues.
var ErrDataIntegrity = errors.New("data integrity error")

// ErrUnbalanced is returned when an exit event does not match the call on
// top of the active stack. Enter and exit events are either unbalanced or
// interleaved and the session can't recover from it.
var ErrUnbalanced = errors.New("unbalanced enter/exit events")

// ErrNoResults represents situations in which no results were returned by the called API.
var ErrNoResults = errors.New("no results returned")
