// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jcodagnone/terroir/spatial"
)

// Nominatim queries the OpenStreetMap free-text search with the full label
// and keeps the top hit.
type Nominatim struct {
	opts options
}

var _ Source = (*Nominatim)(nil)

// NewNominatim creates the source A adapter.
func NewNominatim(opts ...Option) *Nominatim {
	return &Nominatim{opts: buildOptions(options{
		baseURL:  DefaultNominatimURL,
		timeout:  DefaultNominatimTimeout,
		interval: DefaultNominatimInterval,
		retry:    RetryPolicy{MaxAttempts: DefaultNominatimAttempts, Backoff: DefaultNominatimBackoff},
	}, opts)}
}

// Name implements Source.
func (n *Nominatim) Name() SourceID { return SourceNominatim }

// MinInterval implements Source.
func (n *Nominatim) MinInterval() time.Duration { return n.opts.pacer.Interval() }

type nominatimHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Query implements Source. Transport failures and throttling statuses are
// retried with a fixed backoff; anything else ends the lookup.
func (n *Nominatim) Query(ctx context.Context, label string) Result {
	logger := n.opts.logger.With(zap.String("source", string(SourceNominatim)), zap.String("label", label))

	hit, attempts, err := retry(ctx, n.opts.retry, n.opts.sleep, logger,
		func(ctx context.Context) (*nominatimHit, error) {
			return n.search(ctx, label)
		})
	if err != nil {
		logger.Debug("lookup failed", zap.Int("attempts", attempts), zap.Error(err))

		return failed(SourceNominatim, err, attempts)
	}

	if hit == nil {
		return notFound(SourceNominatim, "", attempts)
	}

	p, err := hit.point()
	if err != nil {
		return failed(SourceNominatim, err, attempts)
	}

	return found(SourceNominatim, p, hit.DisplayName, attempts)
}

func (n *Nominatim) search(ctx context.Context, label string) (*nominatimHit, error) {
	if err := n.opts.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", label)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	reqURL := strings.TrimSuffix(n.opts.baseURL, "/") + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, permanent("building nominatim request", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := n.opts.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, transient("nominatim request failed", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, ClassifyHTTPStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transient("reading nominatim response", err)
	}

	var hits []nominatimHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, permanent("decoding nominatim response", err)
	}

	if len(hits) == 0 {
		return nil, nil //nolint:nilnil // no hit is a valid answer
	}

	return &hits[0], nil
}

func (h *nominatimHit) point() (spatial.Point, error) {
	lat, errLat := strconv.ParseFloat(h.Lat, 64)
	lng, errLng := strconv.ParseFloat(h.Lon, 64)

	if err := errors.Join(errLat, errLng); err != nil {
		return spatial.Point{}, permanent("nominatim returned malformed coordinates", err)
	}

	p := spatial.Point{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return spatial.Point{}, permanent("nominatim returned invalid coordinates", eris.Wrap(err, h.DisplayName))
	}

	return p, nil
}
