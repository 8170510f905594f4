// Package errors provides the error taxonomy shared by the parser, comparer
// and driver layers.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a table or view was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a schema definition failed validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrParse indicates DDL text could not be tokenized or parsed
	ErrParse = errors.New("parse error")
	// ErrUnsupported indicates an unsupported operation, dialect or object kind
	ErrUnsupported = errors.New("unsupported")
	// ErrConfig indicates missing or malformed connection parameters
	ErrConfig = errors.New("configuration error")
)

// NotFoundError represents a missing table, view or file
type NotFoundError struct {
	Resource    string   // Type of resource (e.g., "table", "snapshot")
	ID          string   // Identifier of the resource
	Suggestions []string // Close matches, if any
	Err         error    // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s not found", e.Resource)
	if e.ID != "" {
		msg = fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestions[0])
	}
	return msg
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// Is lets a NotFoundError wrapping a driver error still match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError represents a schema object that violates an invariant
type ValidationError struct {
	Object  string // Table or view name
	Field   string // Offending field or index, if any
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	switch {
	case e.Object != "" && e.Field != "":
		return fmt.Sprintf("validation failed for %s.%s: %s", e.Object, e.Field, e.Message)
	case e.Object != "":
		return fmt.Sprintf("validation failed for %s: %s", e.Object, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// ParseError carries the position context of a failed tokenize or parse.
type ParseError struct {
	Statement string // Grammar being parsed (e.g., "mysql create table")
	Near      string // Unconsumed text at the failure point
	SQL       string // Full source text
	Err       error  // Originating low-level error
}

func (e *ParseError) Error() string {
	msg := "failed to parse " + e.Statement
	if e.Near != "" {
		msg += fmt.Sprintf(" near %q", e.Near)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.SQL != "" {
		msg += "\nin: " + e.SQL
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrParse
}

// Is reports ParseError as ErrParse regardless of the wrapped cause.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// UnsupportedError represents an unsupported feature or comparison
type UnsupportedError struct {
	Feature string // Feature that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// ConfigError represents a missing or invalid configuration value
type ConfigError struct {
	Key     string // Config key or environment variable
	Message string
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config %s: %s", e.Key, e.Message)
	}
	return "config: " + e.Message
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(object, field, message string) *ValidationError {
	return &ValidationError{
		Object:  object,
		Field:   field,
		Message: message,
	}
}

// NewParse creates a ParseError
func NewParse(statement, near, sql string, err error) *ParseError {
	return &ParseError{
		Statement: statement,
		Near:      near,
		SQL:       sql,
		Err:       err,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// NewConfig creates a ConfigError
func NewConfig(key, message string) *ConfigError {
	return &ConfigError{
		Key:     key,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsNotFound reports whether err is a not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
