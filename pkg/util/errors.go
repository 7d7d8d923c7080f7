// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the reconciliation error taxonomy
var (
	ErrConfiguration    = errors.New("invalid configuration")
	ErrObservation      = errors.New("cannot observe device state")
	ErrApply            = errors.New("apply failed")
	ErrNotConnected     = errors.New("client not connected")
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
)

// ConfigurationError represents malformed or inconsistent declared intent:
// duplicate loopback ids, invalid addresses, unknown devices.
type ConfigurationError struct {
	Device string
	Detail string
}

func (e *ConfigurationError) Error() string {
	if e.Device == "" {
		return "configuration error: " + e.Detail
	}
	return fmt.Sprintf("configuration error for %s: %s", e.Device, e.Detail)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// NewConfigurationError creates a configuration error with device context
func NewConfigurationError(device, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Device: device, Detail: fmt.Sprintf(format, args...)}
}

// ObservationError represents a failure to read current device state
// from the orchestrator.
type ObservationError struct {
	Device string
	Err    error
}

func (e *ObservationError) Error() string {
	return fmt.Sprintf("observing state of %s: %v", e.Device, e.Err)
}

func (e *ObservationError) Unwrap() error {
	return ErrObservation
}

// Cause returns the underlying transport error
func (e *ObservationError) Cause() error {
	return e.Err
}

// NewObservationError wraps a transport error with device context
func NewObservationError(device string, err error) *ObservationError {
	return &ObservationError{Device: device, Err: err}
}

// ApplyError represents a failed create/update/delete request, tagged
// with the device, loopback id, action type, and position in the plan
// so callers can decide per-action whether to roll back.
type ApplyError struct {
	Device     string
	LoopbackID int
	Action     string
	Index      int
	Err        error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s Loopback%d on %s (action %d): %v",
		e.Action, e.LoopbackID, e.Device, e.Index, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return ErrApply
}

// Cause returns the underlying transport error
func (e *ApplyError) Cause() error {
	return e.Err
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
