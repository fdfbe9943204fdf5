// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

package event

// Context is the anonymized per-installation metadata attached to every
// event from one tool invocation. It is attached once at event
// construction and never mutated afterwards.
type Context struct {
	// InstallationID is a stable random identifier generated on first
	// run and stored locally. It is never tied to a real user.
	InstallationID string `json:"installation_id"`

	// ToolVersion is the version of the producing tool.
	ToolVersion string `json:"tool_version"`

	// PythonVersion is the version of the invoking tool's runtime,
	// treated as an opaque string ("N/A" for the daemon's own events).
	PythonVersion string `json:"python_version"`

	// OS is the operating system name.
	OS string `json:"os"`

	// OSVersion is omitted from serialized output when nil; absence
	// means "unknown" to the ingestion schema.
	OSVersion *string `json:"os_version,omitempty"`
}

// validate checks the required context fields, naming the offending
// field in the returned DecodeError.
func (c *Context) validate() error {
	switch {
	case c.InstallationID == "":
		return &DecodeError{Field: "context.installation_id", Reason: "missing"}
	case c.ToolVersion == "":
		return &DecodeError{Field: "context.tool_version", Reason: "missing"}
	case c.PythonVersion == "":
		return &DecodeError{Field: "context.python_version", Reason: "missing"}
	case c.OS == "":
		return &DecodeError{Field: "context.os", Reason: "missing"}
	}
	return nil
}
