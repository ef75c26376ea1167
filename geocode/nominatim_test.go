// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestNominatim(t *testing.T, handler http.HandlerFunc, clock *fakeClock) *Nominatim {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewNominatim(
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithPacer(newFakePacer(DefaultNominatimInterval, clock)),
		WithLogger(zap.NewNop()),
		withSleep(clock.Sleep),
	)
}

func TestNominatimFound(t *testing.T) {
	clock := newFakeClock()
	n := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Cafayate Valley, Salta, Argentina", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))

		fmt.Fprint(w, `[{"lat":"-26.0730","lon":"-65.9760","display_name":"Cafayate, Salta, Argentina"}]`)
	}, clock)

	res := n.Query(context.Background(), "Cafayate Valley, Salta, Argentina")

	require.Equal(t, StatusFound, res.Status)
	require.True(t, res.Found())
	assert.InDelta(t, -26.073, res.Point.Lat, 1e-9)
	assert.InDelta(t, -65.976, res.Point.Lng, 1e-9)
	assert.Equal(t, "Cafayate, Salta, Argentina", res.Detail)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, SourceNominatim, res.Source)
	assert.Equal(t, SourceNominatim, n.Name())
	assert.Equal(t, DefaultNominatimInterval, n.MinInterval())
}

func TestNominatimNotFound(t *testing.T) {
	n := newTestNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	}, newFakeClock())

	res := n.Query(context.Background(), "Nowhere at all")

	assert.Equal(t, StatusNotFound, res.Status)
	assert.Nil(t, res.Point)
	assert.Equal(t, 1, res.Attempts)
}

func TestNominatimRetriesTransient(t *testing.T) {
	var calls atomic.Int32

	clock := newFakeClock()
	n := newTestNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		fmt.Fprint(w, `[{"lat":"44.84","lon":"-0.58","display_name":"Bordeaux"}]`)
	}, clock)

	res := n.Query(context.Background(), "Bordeaux, France")

	require.Equal(t, StatusFound, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	// two fixed backoffs, no pacer waits on top since the backoff exceeds the interval
	assert.Equal(t, []time.Duration{DefaultNominatimBackoff, DefaultNominatimBackoff}, clock.Sleeps())
}

func TestNominatimGivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32

	n := newTestNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, newFakeClock())

	res := n.Query(context.Background(), "Mendoza, Argentina")

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, res.Err, "429")
}

func TestNominatimPermanentNotRetried(t *testing.T) {
	var calls atomic.Int32

	n := newTestNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"not": "an array"`)
	}, newFakeClock())

	res := n.Query(context.Background(), "Rioja, Spain")

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNominatimMalformedCoordinates(t *testing.T) {
	n := newTestNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"lat":"north","lon":"-0.58"}]`)
	}, newFakeClock())

	res := n.Query(context.Background(), "Bordeaux")
	assert.Equal(t, StatusError, res.Status)

	n = newTestNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"lat":"95","lon":"-0.58"}]`)
	}, newFakeClock())

	res = n.Query(context.Background(), "Bordeaux")
	assert.Equal(t, StatusError, res.Status)
}

func TestNominatimTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	clock := newFakeClock()
	n := NewNominatim(
		WithBaseURL(url),
		WithPacer(newFakePacer(DefaultNominatimInterval, clock)),
		WithLogger(zap.NewNop()),
		withSleep(clock.Sleep),
	)

	res := n.Query(context.Background(), "Mendoza")

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, 3, res.Attempts)
}

func TestNominatimCanceled(t *testing.T) {
	var calls atomic.Int32

	n := newTestNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[]`)
	}, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := n.Query(ctx, "Mendoza")

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, int32(0), calls.Load())
}
