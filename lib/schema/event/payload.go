// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package event

// Kind discriminates payload variants on the wire via the "event_type"
// field.
type Kind string

const (
	KindToolInvoked        Kind = "tool_invoked"
	KindToolSucceeded      Kind = "tool_succeeded"
	KindToolFailed         Kind = "tool_failed"
	KindExceptionUnhandled Kind = "exception_unhandled"
	KindValidationFailed   Kind = "validation_failed"
	KindDaemonStarted      Kind = "daemon_started"
	KindDaemonStopping     Kind = "daemon_stopping"
)

// Payload is the closed sum of event payload variants. Only the types
// in this file implement it.
type Payload interface {
	Kind() Kind
	sealed()
}

// ToolInvoked records the start of a tool command.
type ToolInvoked struct {
	Tool    string
	Command string
}

// ToolSucceeded records a tool command that completed successfully.
type ToolSucceeded struct {
	Tool       string
	Command    string
	DurationMS uint64
}

// ToolFailed records a tool command that ended with a handled error.
type ToolFailed struct {
	Tool       string
	Command    string
	ErrorType  string
	DurationMS uint64
}

// ExceptionUnhandled records an unhandled exception in the producing
// tool. Traceback is optional and omitted when nil.
type ExceptionUnhandled struct {
	Tool          string
	ExceptionType string
	Traceback     *string
}

// ValidationFailed records a failed output validation (for example a
// post-generation syntax check). Details is optional and omitted when
// nil.
type ValidationFailed struct {
	Tool           string
	ValidationType string
	Details        *string
}

// DaemonStarted is the daemon's own startup notice.
type DaemonStarted struct {
	ParentPID int
}

// DaemonStopping is the daemon's own shutdown notice.
type DaemonStopping struct {
	Reason string
}

func (ToolInvoked) Kind() Kind        { return KindToolInvoked }
func (ToolSucceeded) Kind() Kind      { return KindToolSucceeded }
func (ToolFailed) Kind() Kind         { return KindToolFailed }
func (ExceptionUnhandled) Kind() Kind { return KindExceptionUnhandled }
func (ValidationFailed) Kind() Kind   { return KindValidationFailed }
func (DaemonStarted) Kind() Kind      { return KindDaemonStarted }
func (DaemonStopping) Kind() Kind     { return KindDaemonStopping }

func (ToolInvoked) sealed()        {}
func (ToolSucceeded) sealed()      {}
func (ToolFailed) sealed()         {}
func (ExceptionUnhandled) sealed() {}
func (ValidationFailed) sealed()   {}
func (DaemonStarted) sealed()      {}
func (DaemonStopping) sealed()     {}
