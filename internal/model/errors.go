package model

import "errors"

var (
	// ErrInterrupted is returned to a waiting ask when the process shuts down
	// before an answer arrives.
	ErrInterrupted = errors.New("interrupted: shutting down before an answer arrived")

	ErrRegistryClosed = errors.New("correlation registry closed")
	ErrIdentityInUse  = errors.New("question identity already outstanding")
	ErrEmptyQuestion  = errors.New("question text is empty")
)

// ToolError is a tool handler failure surfaced to the RPC caller.
type ToolError struct {
	Tool    string
	Message string
	Cause   error
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil && e.Message == "" {
		return e.Tool + ": " + e.Cause.Error()
	}
	if e.Cause != nil {
		return e.Tool + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Tool + ": " + e.Message
}

func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
