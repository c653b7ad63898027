package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidImageID is returned when an identifier does not name an image in the watched directory
	ErrInvalidImageID = errors.New("invalid image identifier")
	// ErrImageNotFound is returned when the image file no longer exists
	ErrImageNotFound = errors.New("image not found")
)

// StoreError reports an I/O failure in the persistence layer
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// InferenceError reports a transport, timeout, status or stream failure
// from the inference service
type InferenceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *InferenceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s inference failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s inference failed: %v", e.Provider, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// TelemetryError reports a failed delivery to a verdict sink. It is only ever logged.
type TelemetryError struct {
	Sink       string
	StatusCode int
	Err        error
}

func (e *TelemetryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s delivery failed with status %d: %v", e.Sink, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s delivery failed: %v", e.Sink, e.Err)
}

func (e *TelemetryError) Unwrap() error {
	return e.Err
}

// ValidateImageID checks that id is a bare file name without any path component
func ValidateImageID(id string) error {
	if id == "" || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidImageID, id)
	}
	if strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidImageID, id)
	}
	return nil
}
