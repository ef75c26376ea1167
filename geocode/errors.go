// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// GeocodingError represents a failed lookup against a provider.
type GeocodingError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
}

// ErrorType classifies geocoding failures.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified failure.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNotFound the provider answered definitively with no match.
	ErrorTypeNotFound
	// ErrorTypeTransient network or server hiccup, safe to retry.
	ErrorTypeTransient
	// ErrorTypePermanent malformed or unexpected response, retrying won't help.
	ErrorTypePermanent
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

func (e *GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

func transient(msg string, err error) *GeocodingError {
	return &GeocodingError{Type: ErrorTypeTransient, Message: msg, Err: err}
}

func permanent(msg string, err error) *GeocodingError {
	return &GeocodingError{Type: ErrorTypePermanent, Message: msg, Err: err}
}

// TypeOf returns the ErrorType of err, classifying plain errors with
// IsTransient.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type
	}

	if IsTransient(err) {
		return ErrorTypeTransient
	}

	return ErrorTypePermanent
}

// IsTransient reports whether err is worth retrying: an explicit transient
// GeocodingError, a network timeout, or a dropped connection. Context
// cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host")
}

// ClassifyHTTPStatus maps a non-2xx status code to a GeocodingError.
func ClassifyHTTPStatus(statusCode int) *GeocodingError {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return &GeocodingError{
			Type:       ErrorTypeTransient,
			Message:    fmt.Sprintf("throttled (status %d)", statusCode),
			StatusCode: statusCode,
		}
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &GeocodingError{
			Type:       ErrorTypeTransient,
			Message:    fmt.Sprintf("service unavailable (status %d)", statusCode),
			StatusCode: statusCode,
		}
	case http.StatusNotFound:
		return &GeocodingError{
			Type:       ErrorTypePermanent,
			Message:    "endpoint not found (status 404)",
			StatusCode: statusCode,
		}
	default:
		return &GeocodingError{
			Type:       ErrorTypePermanent,
			Message:    fmt.Sprintf("unexpected HTTP status %d", statusCode),
			StatusCode: statusCode,
		}
	}
}
