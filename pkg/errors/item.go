// Package errors provides error types that carry the context of the item being processed.
package errors

import (
	"fmt"
	"time"
)

// ItemError describes a failure scoped to a single workflow definition.
//
// It records which operation failed, the file the definition came from and
// the workflow name when it could be determined. Processing of other items
// continues when an ItemError is reported.
type ItemError struct {
	Operation string    // What was being done ("load", "create", "update", ...)
	File      string    // Source file name (may be empty for remote-only items)
	Name      string    // Workflow name (empty if the file could not be parsed)
	Timestamp time.Time // When the error occurred
	Cause     error     // Underlying error
}

// NewItemError wraps cause with item context.
//
// Returns nil if cause is nil.
//
// Example:
//
//	if err != nil {
//	    return NewItemError("update", def.File, def.Name, err)
//	}
func NewItemError(operation, file, name string, cause error) *ItemError {
	if cause == nil {
		return nil
	}

	return &ItemError{
		Operation: operation,
		File:      file,
		Name:      name,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// Item returns the best available label for the item: its name, or the file
// name when the definition could not be parsed.
func (e *ItemError) Item() string {
	if e == nil {
		return ""
	}
	if e.Name != "" {
		return e.Name
	}
	return e.File
}

// Error implements the error interface.
//
// Format: "{operation} {item}: {cause}", with the file appended in
// parentheses when it differs from the item label.
func (e *ItemError) Error() string {
	if e == nil {
		return "<nil ItemError>"
	}

	item := e.Item()
	if e.File != "" && e.File != item {
		return fmt.Sprintf("%s %s (%s): %v", e.Operation, item, e.File, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Operation, item, e.Cause)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ItemError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
