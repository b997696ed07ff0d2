package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the request pipeline
var (
	// ErrInvalidRegion is returned when a selection cannot be resolved to a boundary
	ErrInvalidRegion = errors.New("invalid region")

	// ErrUpstreamUnavailable is returned when the map data service cannot be reached
	ErrUpstreamUnavailable = errors.New("map data service unavailable")

	// ErrEmptyResultSet is returned when no unpaved roads matched
	ErrEmptyResultSet = errors.New("no unpaved roads found")

	// ErrMalformedRecord marks a single upstream record that could not be parsed
	ErrMalformedRecord = errors.New("malformed record")
)

// InvalidRegionError describes a selection that failed to resolve
type InvalidRegionError struct {
	Region Region
	Reason string
}

func (e *InvalidRegionError) Error() string {
	return fmt.Sprintf("invalid region %q: %s", e.Region.String(), e.Reason)
}

func (e *InvalidRegionError) Is(target error) bool {
	return target == ErrInvalidRegion
}

// UpstreamError wraps a failed call to an external service
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// MalformedRecordError describes an upstream element that was skipped
type MalformedRecordError struct {
	Type   string
	ID     int64
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s %d: %s", e.Type, e.ID, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}
