package fetcher

import (
	"context"
	"errors"
	"fmt"
)

// TimeoutError indicates a timeout while issuing a request.
type TimeoutError struct {
	URL string
	Err error
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("timeout fetching %s: %v", e.URL, e.Err)
}

func (e TimeoutError) Unwrap() error {
	return e.Err
}

// ConnectionError indicates a network connectivity failure.
type ConnectionError struct {
	URL string
	Err error
}

func (e ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s: %v", e.URL, e.Err)
}

func (e ConnectionError) Unwrap() error {
	return e.Err
}

// StatusError indicates a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("http status %d from %s", e.StatusCode, e.URL)
}

// ParseError indicates a malformed or unexpectedly shaped metadata document.
type ParseError struct {
	URL string
	Err error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse metadata from %s: %v", e.URL, e.Err)
}

func (e ParseError) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout TimeoutError
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ConnectionError
	if errors.As(err, &conn) {
		return "connection"
	}
	var status StatusError
	if errors.As(err, &status) {
		return "status"
	}
	var parse ParseError
	if errors.As(err, &parse) {
		return "parse"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "other"
}
