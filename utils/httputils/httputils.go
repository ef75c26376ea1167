// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils builds the HTTP clients the geocoding adapters use.
package httputils

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"
)

// ClientOptions describes one outbound session.
type ClientOptions struct {
	// UserAgent is required by both public geocoding services.
	UserAgent string
	// Timeout bounds a whole request, body included.
	Timeout time.Duration
	// Trace, when set, receives a dump of every request and response.
	Trace io.Writer
	// TraceBody includes response bodies in the trace.
	TraceBody bool
}

// NewClient returns a client with its own connection pool. Redirects are
// not followed; the services answer directly.
func NewClient(opts ClientOptions) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   2,
		MaxConnsPerHost:       2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		ForceAttemptHTTP2:     true,
	}

	userAgent := "terroir/unknown"
	if opts.UserAgent != "" {
		userAgent = opts.UserAgent
	}

	var rt http.RoundTripper = &TraceRoundTripper{
		Writer:    opts.Trace,
		DumpBody:  opts.TraceBody,
		Transport: transport,
	}

	rt = &HeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		Transport: rt,
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: rt,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

/////////////////////////////////////////
/// RoundTrippers

// TraceRoundTripper dumps each HTTP transaction to Writer. A nil Writer
// disables tracing.
type TraceRoundTripper struct {
	Transport http.RoundTripper
	Writer    io.Writer
	DumpBody  bool
}

const (
	maxTraceLines = 256
	maxTraceChars = 512
)

// prefix marks each dumped line and trims long dumps.
func prefix(dump []byte, mark rune) string {
	lines := strings.Split(strings.TrimRight(string(dump), "\r\n"), "\n")

	truncated := len(lines) > maxTraceLines
	if truncated {
		lines = lines[:maxTraceLines]
	}

	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if len(line) > maxTraceChars {
			line = line[:maxTraceChars] + "…"
		}

		lines[i] = fmt.Sprintf("%c %s", mark, line)
	}

	if truncated {
		lines = append(lines, fmt.Sprintf("%c …", mark))
	}

	return strings.Join(lines, "\n") + "\n"
}

// RoundTrip implements the http.RoundTripper interface.
func (t *TraceRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Writer == nil {
		return t.Transport.RoundTrip(req)
	}

	dump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		return nil, fmt.Errorf("tracing HTTP request: %w", err)
	}

	if _, err := io.WriteString(t.Writer, prefix(dump, '>')); err != nil {
		return nil, fmt.Errorf("tracing HTTP request: %w", err)
	}

	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		fmt.Fprintf(t.Writer, "< ERROR: [%v] %v\n", time.Since(start), err)

		return nil, err
	}

	dump, err = httputil.DumpResponse(resp, t.DumpBody)
	if err != nil {
		resp.Body.Close()

		return nil, fmt.Errorf("tracing HTTP response: %w", err)
	}

	if _, err := fmt.Fprintf(t.Writer, "< RESPONSE: [%v]\n%s", time.Since(start), prefix(dump, '<')); err != nil {
		resp.Body.Close()

		return nil, fmt.Errorf("tracing HTTP response: %w", err)
	}

	return resp, nil
}

// HeadersRoundTripper sets fixed headers on every outgoing request.
type HeadersRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface. The caller's request
// is left untouched.
func (t *HeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.Headers {
		clone.Header.Set(k, v)
	}

	return t.Transport.RoundTrip(clone)
}
