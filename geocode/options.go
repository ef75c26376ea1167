// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jcodagnone/terroir/utils/httputils"
)

const (
	// DefaultNominatimURL is the public OpenStreetMap Nominatim endpoint.
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	// DefaultWikipediaURL is the English Wikipedia endpoint.
	DefaultWikipediaURL = "https://en.wikipedia.org"

	// DefaultNominatimInterval is the public usage policy limit plus margin.
	DefaultNominatimInterval = 1100 * time.Millisecond
	// DefaultWikipediaInterval keeps the MediaWiki API load polite.
	DefaultWikipediaInterval = 200 * time.Millisecond

	// DefaultUserAgent identifies the default clients. Nominatim refuses the
	// Go default User-Agent.
	DefaultUserAgent = "WineMapper/1.0"

	// DefaultNominatimTimeout bounds one Nominatim request.
	DefaultNominatimTimeout = 10 * time.Second
	// DefaultWikipediaTimeout bounds one Wikipedia request.
	DefaultWikipediaTimeout = 20 * time.Second

	// DefaultNominatimAttempts is the total number of tries per label.
	DefaultNominatimAttempts = 3
	// DefaultNominatimBackoff is the fixed wait between tries.
	DefaultNominatimBackoff = 2 * time.Second
)

// Option configures an adapter. Options that don't apply to an adapter are
// ignored by it.
type Option func(*options)

type options struct {
	baseURL  string
	client   *http.Client
	timeout  time.Duration
	interval time.Duration
	pacer    *Pacer
	retry    RetryPolicy
	memoize  bool
	logger   *zap.Logger
	sleep    func(context.Context, time.Duration) error
}

// WithBaseURL overrides the service endpoint, mostly for tests.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient sets the client used for every request. Each adapter should
// get its own client. Without it an adapter builds a private one.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithMinInterval overrides the minimum gap between request starts.
func WithMinInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithPacer installs an existing Pacer instead of creating one.
func WithPacer(p *Pacer) Option {
	return func(o *options) { o.pacer = p }
}

// WithRetry sets the retry policy. Only Nominatim retries.
func WithRetry(p RetryPolicy) Option {
	return func(o *options) { o.retry = p }
}

// WithMemoize toggles the in-run title cache. Only Wikipedia memoizes.
func WithMemoize(enabled bool) Option {
	return func(o *options) { o.memoize = enabled }
}

// WithLogger sets the adapter logger. Defaults to the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func withSleep(fn func(context.Context, time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

func buildOptions(defaults options, opts []Option) options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}

	if o.client == nil {
		o.client = httputils.NewClient(httputils.ClientOptions{
			UserAgent: DefaultUserAgent,
			Timeout:   o.timeout,
		})
	}

	if o.pacer == nil {
		o.pacer = NewPacer(o.interval)
	}

	if o.logger == nil {
		o.logger = zap.L()
	}

	if o.sleep == nil {
		o.sleep = sleepContext
	}

	return o
}
