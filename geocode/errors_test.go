// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"syscall"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient geocoding error", transient("boom", nil), true},
		{"permanent geocoding error", permanent("bad json", nil), false},
		{"wrapped transient", fmt.Errorf("query: %w", transient("x", nil)), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"timeout message", errors.New("i/o timeout"), true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"wrapped eof", &url.Error{Op: "Get", URL: "http://example.com", Err: io.EOF}, true},
		{"eof inside a word", errors.New("the title thereof is invalid"), false},
		{"canceled", context.Canceled, false},
		{"wrapped canceled", fmt.Errorf("waiting: %w", context.Canceled), false},
		{"other", errors.New("invalid character"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{http.StatusRequestTimeout, ErrorTypeTransient},
		{http.StatusTooManyRequests, ErrorTypeTransient},
		{http.StatusInternalServerError, ErrorTypeTransient},
		{http.StatusBadGateway, ErrorTypeTransient},
		{http.StatusServiceUnavailable, ErrorTypeTransient},
		{http.StatusGatewayTimeout, ErrorTypeTransient},
		{http.StatusNotFound, ErrorTypePermanent},
		{http.StatusForbidden, ErrorTypePermanent},
		{http.StatusBadRequest, ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ClassifyHTTPStatus(tt.status)
			if err.Type != tt.want {
				t.Errorf("ClassifyHTTPStatus(%d).Type = %v, want %v", tt.status, err.Type, tt.want)
			}

			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.status)
			}
		})
	}
}

func TestTypeOf(t *testing.T) {
	if got := TypeOf(nil); got != ErrorTypeUnknown {
		t.Errorf("TypeOf(nil) = %v", got)
	}

	if got := TypeOf(errors.New("connection reset by peer")); got != ErrorTypeTransient {
		t.Errorf("TypeOf(reset) = %v", got)
	}

	if got := TypeOf(errors.New("bad")); got != ErrorTypePermanent {
		t.Errorf("TypeOf(bad) = %v", got)
	}

	if got := ErrorTypeNotFound.String(); got != "not_found" {
		t.Errorf("String() = %q", got)
	}
}

func TestGeocodingErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := transient("outer", inner)

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find inner error")
	}

	if err.Error() != "outer: inner" {
		t.Errorf("Error() = %q", err.Error())
	}
}
