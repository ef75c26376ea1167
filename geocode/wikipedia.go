// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jcodagnone/terroir/place"
	"github.com/jcodagnone/terroir/spatial"
)

// Wikipedia looks up the primary coordinates of the page whose title exactly
// matches the normalized label. It makes a single attempt per title.
type Wikipedia struct {
	opts     options
	memo     *cache.Cache
	inflight singleflight.Group
}

var _ Source = (*Wikipedia)(nil)

// NewWikipedia creates the source B adapter. Memoization is on by default.
func NewWikipedia(opts ...Option) *Wikipedia {
	w := &Wikipedia{opts: buildOptions(options{
		baseURL:  DefaultWikipediaURL,
		timeout:  DefaultWikipediaTimeout,
		interval: DefaultWikipediaInterval,
		retry:    NoRetry,
		memoize:  true,
	}, opts)}

	if w.opts.memoize {
		w.memo = cache.New(cache.NoExpiration, 0)
	}

	return w
}

// Name implements Source.
func (w *Wikipedia) Name() SourceID { return SourceWikipedia }

// MinInterval implements Source.
func (w *Wikipedia) MinInterval() time.Duration { return w.opts.pacer.Interval() }

type wikiResponse struct {
	Query *struct {
		Pages []wikiPage `json:"pages"`
	} `json:"query"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

type wikiPage struct {
	Title       string `json:"title"`
	Missing     bool   `json:"missing"`
	Invalid     bool   `json:"invalid"`
	Coordinates []struct {
		Lat   float64 `json:"lat"`
		Lon   float64 `json:"lon"`
		Globe string  `json:"globe"`
	} `json:"coordinates"`
}

// Query implements Source. Missing pages, invalid titles, pages without
// coordinates and labels that normalize to nothing are NotFound.
//
// A memoized answer is returned as it was first recorded, attempts included,
// so a record does not depend on which label asked for the title first.
func (w *Wikipedia) Query(ctx context.Context, label string) Result {
	title := place.Normalize(label)
	if title == "" {
		return notFound(SourceWikipedia, "", 0)
	}

	if w.memo == nil {
		return w.lookup(ctx, title)
	}

	if cached, ok := w.memo.Get(title); ok {
		return cached.(Result) //nolint:forcetypeassert // only Results are stored
	}

	// Concurrent misses on one title share a single request.
	v, _, _ := w.inflight.Do(title, func() (any, error) {
		if cached, ok := w.memo.Get(title); ok {
			return cached, nil
		}

		res := w.lookup(ctx, title)
		if res.Status != StatusError {
			w.memo.Set(title, res, cache.NoExpiration)
		}

		return res, nil
	})

	return v.(Result) //nolint:forcetypeassert // the group only returns Results
}

func (w *Wikipedia) lookup(ctx context.Context, title string) Result {
	logger := w.opts.logger.With(zap.String("source", string(SourceWikipedia)), zap.String("title", title))

	page, attempts, err := retry(ctx, w.opts.retry, w.opts.sleep, logger,
		func(ctx context.Context) (*wikiPage, error) {
			return w.fetch(ctx, title)
		})
	if err != nil {
		logger.Debug("lookup failed", zap.Error(err))

		return failed(SourceWikipedia, err, attempts)
	}

	if page.Missing || page.Invalid || len(page.Coordinates) == 0 {
		return notFound(SourceWikipedia, page.Title, attempts)
	}

	c := page.Coordinates[0]
	if c.Globe != "" && !strings.EqualFold(c.Globe, "earth") {
		return notFound(SourceWikipedia, page.Title, attempts)
	}

	p := spatial.Point{Lat: c.Lat, Lng: c.Lon}
	if err := p.Validate(); err != nil {
		return failed(SourceWikipedia, permanent("wikipedia returned invalid coordinates", err), attempts)
	}

	return found(SourceWikipedia, p, page.Title, attempts)
}

func (w *Wikipedia) fetch(ctx context.Context, title string) (*wikiPage, error) {
	if err := w.opts.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("prop", "coordinates")
	params.Set("titles", title)
	params.Set("colimit", "1")
	params.Set("coprimary", "primary")

	reqURL := strings.TrimSuffix(w.opts.baseURL, "/") + "/w/api.php?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, permanent("building wikipedia request", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := w.opts.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, transient("wikipedia request failed", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, ClassifyHTTPStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transient("reading wikipedia response", err)
	}

	var parsed wikiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, permanent("decoding wikipedia response", err)
	}

	if parsed.Error != nil {
		return nil, permanent("wikipedia api error "+parsed.Error.Code+": "+parsed.Error.Info, nil)
	}

	if parsed.Query == nil || len(parsed.Query.Pages) == 0 {
		return nil, permanent("wikipedia response has no pages", nil)
	}

	return &parsed.Query.Pages[0], nil
}
