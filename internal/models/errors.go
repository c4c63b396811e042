package models

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrNotFound ErrorType = iota
	ErrUnknownVersion
	ErrDuplicateIdentifier
	ErrDownloadFailed
	ErrMissingArchive
	ErrInstallFailed
	ErrEnvironmentCreateFailed
	ErrInvalidSetup
	ErrCommandFailed
	ErrRenderFailed
	ErrTemplateNotFound
	ErrInvalidConfig
	ErrReservation
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrUnknownVersion:
		return "UnknownVersion"
	case ErrDuplicateIdentifier:
		return "DuplicateIdentifier"
	case ErrDownloadFailed:
		return "DownloadFailed"
	case ErrMissingArchive:
		return "MissingArchive"
	case ErrInstallFailed:
		return "InstallFailed"
	case ErrEnvironmentCreateFailed:
		return "EnvironmentCreateFailed"
	case ErrInvalidSetup:
		return "InvalidSetup"
	case ErrCommandFailed:
		return "CommandFailed"
	case ErrRenderFailed:
		return "RenderFailed"
	case ErrTemplateNotFound:
		return "TemplateNotFound"
	case ErrInvalidConfig:
		return "InvalidConfig"
	case ErrReservation:
		return "Reservation"
	default:
		return "Unknown"
	}
}

// DeployError represents an error during installation or deployment
type DeployError struct {
	Type    ErrorType
	Package string
	Err     error
}

// Error implements the error interface
func (e *DeployError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Package, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *DeployError) Unwrap() error {
	return e.Err
}

// NewError builds a DeployError from a format string.
func NewError(t ErrorType, pkg string, format string, args ...interface{}) *DeployError {
	return &DeployError{
		Type:    t,
		Package: pkg,
		Err:     fmt.Errorf(format, args...),
	}
}

// IsType reports whether any error in err's chain is a DeployError of type t.
func IsType(err error, t ErrorType) bool {
	var de *DeployError
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Type == t {
			return true
		}
		err = de.Err
	}
	return false
}
