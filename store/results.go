// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists resolution records: the label-keyed JSON result
// set, the GeoJSON map export and the DuckDB places table.
package store

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/jcodagnone/terroir/geocode"
	"github.com/jcodagnone/terroir/reconcile"
	"github.com/jcodagnone/terroir/spatial"
)

// ResultSet maps place labels to their resolution record. Put is
// last-write-wins: storing a label again replaces the previous record. It is
// safe for concurrent use.
type ResultSet struct {
	mu      sync.RWMutex
	records map[string]reconcile.Record
}

// NewResultSet creates an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{records: make(map[string]reconcile.Record)}
}

// Put stores rec under its place label and reports whether it replaced an
// existing record.
func (s *ResultSet) Put(rec reconcile.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, replaced := s.records[rec.Place]
	s.records[rec.Place] = rec

	return replaced
}

// Get returns the record for label.
func (s *ResultSet) Get(label string) (reconcile.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[label]

	return rec, ok
}

// Len returns the number of labels.
func (s *ResultSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Labels returns every label in byte order.
func (s *ResultSet) Labels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	labels := make([]string, 0, len(s.records))
	for l := range s.records {
		labels = append(labels, l)
	}

	sort.Strings(labels)

	return labels
}

// Records returns every record ordered by label.
func (s *ResultSet) Records() []reconcile.Record {
	labels := s.Labels()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]reconcile.Record, 0, len(labels))
	for _, l := range labels {
		if rec, ok := s.records[l]; ok {
			out = append(out, rec)
		}
	}

	return out
}

// Merge copies every record of other into s, replacing records that share a
// label.
func (s *ResultSet) Merge(other *ResultSet) {
	for _, rec := range other.Records() {
		s.Put(rec)
	}
}

// Statistics recomputes the run counters from the stored records.
func (s *ResultSet) Statistics() reconcile.Statistics {
	var stats reconcile.Statistics
	for _, rec := range s.Records() {
		stats = stats.Add(rec)
	}

	return stats
}

// SourceJSON is the persisted form of one source result.
type SourceJSON struct {
	Status   geocode.Status `json:"status"`
	Lat      *float64       `json:"lat"`
	Lon      *float64       `json:"lon"`
	Detail   string         `json:"detail,omitempty"`
	Error    string         `json:"error,omitempty"`
	Attempts int            `json:"attempts"`
}

// RecordJSON is the persisted form of a record. The flat lat/lon columns
// duplicate the nested source results for consumers that only read those.
type RecordJSON struct {
	Place         string            `json:"place"`
	Region        string            `json:"region"`
	Nominatim     SourceJSON        `json:"nominatim"`
	Wikipedia     SourceJSON        `json:"wikipedia"`
	NominatimLat  *float64          `json:"nominatim_lat"`
	NominatimLon  *float64          `json:"nominatim_lon"`
	WikipediaLat  *float64          `json:"wikipedia_lat"`
	WikipediaLon  *float64          `json:"wikipedia_lon"`
	WikipediaPage *string           `json:"wikipedia_page"`
	ChosenSource  *string           `json:"chosen_source"`
	ChosenLat     *float64          `json:"chosen_lat"`
	ChosenLon     *float64          `json:"chosen_lon"`
	DistanceKm    *float64          `json:"distance_km"`
	Outcome       reconcile.Outcome `json:"outcome"`
}

func latLon(p *spatial.Point) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}

	lat, lng := p.Lat, p.Lng

	return &lat, &lng
}

func encodeSource(r geocode.Result) SourceJSON {
	lat, lon := latLon(r.Point)

	return SourceJSON{
		Status:   r.Status,
		Lat:      lat,
		Lon:      lon,
		Detail:   r.Detail,
		Error:    r.Err,
		Attempts: r.Attempts,
	}
}

func decodeSource(id geocode.SourceID, s SourceJSON) geocode.Result {
	r := geocode.Result{
		Source:   id,
		Status:   s.Status,
		Detail:   s.Detail,
		Err:      s.Error,
		Attempts: s.Attempts,
	}

	if s.Lat != nil && s.Lon != nil {
		r.Point = &spatial.Point{Lat: *s.Lat, Lng: *s.Lon}
	}

	if r.Status == "" {
		// legacy files only carry the flat columns
		r.Status = geocode.StatusNotFound
		if r.Point != nil {
			r.Status = geocode.StatusFound
		}
	}

	return r
}

// EncodeRecord converts rec to its persisted form.
func EncodeRecord(rec reconcile.Record) RecordJSON {
	out := RecordJSON{
		Place:      rec.Place,
		Region:     rec.Region,
		Nominatim:  encodeSource(rec.Nominatim),
		Wikipedia:  encodeSource(rec.Wikipedia),
		DistanceKm: rec.DistanceKm,
		Outcome:    rec.Outcome,
	}

	out.NominatimLat, out.NominatimLon = latLon(rec.Nominatim.Point)
	out.WikipediaLat, out.WikipediaLon = latLon(rec.Wikipedia.Point)

	if rec.Wikipedia.Found() && rec.Wikipedia.Detail != "" {
		page := rec.Wikipedia.Detail
		out.WikipediaPage = &page
	}

	if rec.ChosenSource != "" {
		src := string(rec.ChosenSource)
		out.ChosenSource = &src
	}

	out.ChosenLat, out.ChosenLon = latLon(rec.Chosen)

	return out
}

func decodeRecord(label string, in RecordJSON) reconcile.Record {
	rec := reconcile.Record{
		Place:      in.Place,
		Region:     in.Region,
		Nominatim:  decodeSource(geocode.SourceNominatim, in.Nominatim),
		Wikipedia:  decodeSource(geocode.SourceWikipedia, in.Wikipedia),
		DistanceKm: in.DistanceKm,
		Outcome:    in.Outcome,
	}

	if rec.Place == "" {
		rec.Place = label
	}

	if rec.Nominatim.Point == nil && in.NominatimLat != nil && in.NominatimLon != nil {
		rec.Nominatim.Point = &spatial.Point{Lat: *in.NominatimLat, Lng: *in.NominatimLon}
		rec.Nominatim.Status = geocode.StatusFound
	}

	if rec.Wikipedia.Point == nil && in.WikipediaLat != nil && in.WikipediaLon != nil {
		rec.Wikipedia.Point = &spatial.Point{Lat: *in.WikipediaLat, Lng: *in.WikipediaLon}
		rec.Wikipedia.Status = geocode.StatusFound
	}

	if rec.Wikipedia.Detail == "" && in.WikipediaPage != nil {
		rec.Wikipedia.Detail = *in.WikipediaPage
	}

	if in.ChosenSource != nil {
		rec.ChosenSource = geocode.SourceID(*in.ChosenSource)
	}

	if in.ChosenLat != nil && in.ChosenLon != nil {
		rec.Chosen = &spatial.Point{Lat: *in.ChosenLat, Lng: *in.ChosenLon}
	}

	if rec.Outcome == "" {
		rec.Outcome = inferOutcome(rec)
	}

	return rec
}

func inferOutcome(rec reconcile.Record) reconcile.Outcome {
	switch {
	case rec.Chosen == nil:
		return reconcile.OutcomeFailed
	case rec.DistanceKm != nil && rec.ChosenSource == geocode.SourceWikipedia:
		return reconcile.OutcomeDiverged
	case rec.DistanceKm != nil:
		return reconcile.OutcomeAgreed
	case rec.ChosenSource == geocode.SourceWikipedia:
		return reconcile.OutcomeOnlyWikipedia
	default:
		return reconcile.OutcomeOnlyNominatim
	}
}

// WriteTo encodes the result set as a JSON object keyed by label with sorted
// keys and two-space indentation. The encoding holds no timestamps, so equal
// sets always produce equal bytes.
func (s *ResultSet) WriteTo(w io.Writer) (int64, error) {
	s.mu.RLock()

	out := make(map[string]RecordJSON, len(s.records))
	for label, rec := range s.records {
		out[label] = EncodeRecord(rec)
	}

	s.mu.RUnlock()

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return 0, eris.Wrap(err, "store: encoding result set")
	}

	n, err := w.Write(buf.Bytes())
	if err != nil {
		return int64(n), eris.Wrap(err, "store: writing result set")
	}

	return int64(n), nil
}

// Save writes the result set to path atomically: the data goes to a temporary
// file in the same directory which then replaces path.
func (s *ResultSet) Save(path string) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "store: creating temporary file in %s", dir)
	}

	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := s.WriteTo(tmp); err != nil {
		tmp.Close()

		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()

		return eris.Wrapf(err, "store: syncing %s", tmpName)
	}

	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "store: closing %s", tmpName)
	}

	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // result files are meant to be shared
		return eris.Wrapf(err, "store: setting permissions on %s", tmpName)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "store: replacing %s", path)
	}

	return nil
}

// Decode reads a result set written by WriteTo. Legacy files that only carry
// the flat lat/lon columns are accepted too.
func Decode(r io.Reader) (*ResultSet, error) {
	var in map[string]RecordJSON
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, eris.Wrap(err, "store: decoding result set")
	}

	set := NewResultSet()
	for label, rec := range in {
		set.records[label] = decodeRecord(label, rec)
	}

	return set, nil
}

// Load reads a result set from path.
func Load(path string) (*ResultSet, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return nil, eris.Wrapf(err, "store: opening %s", path)
	}
	defer f.Close()

	set, err := Decode(f)
	if err != nil {
		return nil, eris.Wrapf(err, "store: loading %s", path)
	}

	return set, nil
}
