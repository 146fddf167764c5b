package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrMalformedRecord = errors.New("malformed record")
	ErrDuplicateID     = errors.New("duplicate id")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrValidation      = errors.New("validation failed")
	ErrNetwork         = errors.New("network failure")
	ErrCartEmpty       = errors.New("no saved cart")
)

// MalformedRecordError names the required field a backend record is missing.
type MalformedRecordError struct {
	Field string
}

func (e *MalformedRecordError) Error() string {
	return "malformed record: missing " + e.Field
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	known := []string{"subject", "html_content", "recipient_email"}
	parts := make([]string, 0, len(e.Fields))
	for _, k := range known {
		if msg, ok := e.Fields[k]; ok {
			parts = append(parts, k+": "+msg)
		}
	}
	extra := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		if !slices.Contains(known, k) {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	for _, k := range extra {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NetworkError carries the transport or backend message verbatim.
type NetworkError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }
