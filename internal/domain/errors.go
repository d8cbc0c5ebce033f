package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound              = errors.New("not found")
	ErrTransport             = errors.New("transport failure")
	ErrExtraction            = errors.New("metadata extraction failed")
	ErrValidation            = errors.New("validation failed")
	ErrMalformedNotification = errors.New("malformed notification")
	ErrUnsupported           = errors.New("unsupported operation")
	ErrInvalidInput          = errors.New("invalid input")
)

// Specific errors.
var (
	ErrCatalogNotFound    = fmt.Errorf("catalog: %w", ErrNotFound)
	ErrItemNotFound       = fmt.Errorf("item: %w", ErrNotFound)
	ErrObjectNotFound     = fmt.Errorf("object: %w", ErrNotFound)
	ErrUnsupportedScheme  = fmt.Errorf("uri scheme: %w", ErrUnsupported)
	ErrReadOnlyStorage    = fmt.Errorf("read-only storage: %w", ErrUnsupported)
	ErrNoSpatialReference = fmt.Errorf("no spatial reference: %w", ErrExtraction)
	ErrBusDisconnected    = fmt.Errorf("message bus disconnected: %w", ErrTransport)
	ErrDuplicateItem      = fmt.Errorf("duplicate item id: %w", ErrInvalidInput)
)

// StorageError represents an error during catalog storage I/O.
type StorageError struct {
	Operation string // Operation that failed (read, write)
	URI       string // Document or object URI
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.URI, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ExtractionError represents a failure to read a raster's spatial header.
type ExtractionError struct {
	URI string // Raster URI
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting geometry from %s: %v", e.URI, e.Err)
}

// Unwrap returns both the extraction sentinel and the underlying error.
func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

// ValidationError represents a catalog document failing its schema check.
type ValidationError struct {
	Document string // Href of the offending document
	Kind     string // Document kind (catalog, item)
	Message  string // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s %s: %s", e.Kind, e.Document, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotificationError represents a message body that does not decode as a
// notification batch.
type NotificationError struct {
	Source string // Delivery source (queue, subject, file)
	Err    error  // Underlying decode error
}

// Error implements the error interface.
func (e *NotificationError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("malformed notification from %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("malformed notification: %v", e.Err)
}

// Unwrap returns both the malformed-notification sentinel and the cause.
func (e *NotificationError) Unwrap() []error {
	return []error{ErrMalformedNotification, e.Err}
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
