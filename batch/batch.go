// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

// Package batch runs both geocoding sources over every distinct place label
// and reconciles the answers.
package batch

import (
	"context"
	"io"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jcodagnone/terroir/geocode"
	"github.com/jcodagnone/terroir/place"
	"github.com/jcodagnone/terroir/reconcile"
	"github.com/jcodagnone/terroir/store"
)

// Orchestrator resolves place labels against source A (free-text) and
// source B (exact title). Source failures never stop a run; they end up in
// the records. Only context cancellation does.
type Orchestrator struct {
	a, b      geocode.Source
	threshold float64
	workers   int
	progress  io.Writer
	bar       *progressbar.ProgressBar
	logger    *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithThreshold sets the divergence threshold in kilometers.
func WithThreshold(km float64) Option {
	return func(o *Orchestrator) { o.threshold = km }
}

// WithWorkers sets how many labels are resolved at once. One, the default,
// processes labels strictly in order. Each source keeps its own pacing
// across all workers.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) { o.workers = max(n, 1) }
}

// WithProgress sets where per-label progress lines go. Nil disables them.
func WithProgress(w io.Writer) Option {
	return func(o *Orchestrator) { o.progress = w }
}

// WithProgressBar advances bar once per resolved label.
func WithProgressBar(bar *progressbar.ProgressBar) Option {
	return func(o *Orchestrator) { o.bar = bar }
}

// WithLogger sets the logger. Defaults to the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator querying a first and b second for every label.
func New(a, b geocode.Source, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		a:         a,
		b:         b,
		threshold: reconcile.DefaultThresholdKm,
		workers:   1,
		progress:  io.Discard,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.progress == nil {
		o.progress = io.Discard
	}

	if o.logger == nil {
		o.logger = zap.L()
	}

	return o
}

// Threshold returns the divergence threshold in kilometers.
func (o *Orchestrator) Threshold() float64 {
	return o.threshold
}

// Run resolves every non-empty label in places. Blank labels are skipped
// without a query, a progress line or a record. A label seen twice keeps the
// record of its last occurrence.
//
// If ctx ends the run is abandoned and an error is returned; nothing
// resolved so far is handed back.
func (o *Orchestrator) Run(ctx context.Context, places []place.Place) (*store.ResultSet, reconcile.Statistics, error) {
	queue := make([]place.Place, 0, len(places))

	for _, p := range places {
		if place.IsEmpty(p.Label) {
			o.logger.Debug("skipping empty place label", zap.String("region", p.Region))

			continue
		}

		queue = append(queue, p)
	}

	o.logger.Info("geocoding places",
		zap.Int("labels", len(queue)),
		zap.Int("skipped", len(places)-len(queue)),
		zap.Int("workers", o.workers),
		zap.Float64("threshold_km", o.threshold),
		zap.Duration(string(o.a.Name())+"_interval", o.a.MinInterval()),
		zap.Duration(string(o.b.Name())+"_interval", o.b.MinInterval()),
	)

	if err := writeHeader(o.progress); err != nil {
		return nil, reconcile.Statistics{}, eris.Wrap(err, "batch: writing progress")
	}

	var (
		records []reconcile.Record
		err     error
	)

	if o.workers <= 1 {
		records, err = o.runSequential(ctx, queue)
	} else {
		records, err = o.runParallel(ctx, queue)
	}

	if err != nil {
		return nil, reconcile.Statistics{}, err
	}

	set := store.NewResultSet()

	var stats reconcile.Statistics

	for _, rec := range records {
		if set.Put(rec) {
			o.logger.Debug("replacing earlier record", zap.String("place", rec.Place))
		}

		stats = stats.Add(rec)
	}

	return set, stats, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, queue []place.Place) ([]reconcile.Record, error) {
	records := make([]reconcile.Record, 0, len(queue))

	for i, p := range queue {
		rec, err := o.resolve(ctx, p)
		if err != nil {
			return nil, err
		}

		if err := o.report(i+1, rec); err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, nil
}

func (o *Orchestrator) runParallel(ctx context.Context, queue []place.Place) ([]reconcile.Record, error) {
	records := make([]reconcile.Record, len(queue))

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for i, p := range queue {
		g.Go(func() error {
			rec, err := o.resolve(gctx, p)
			if err != nil {
				return err
			}

			records[i] = rec

			mu.Lock()
			defer mu.Unlock()

			done++

			return o.report(done, rec)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// cancellation may arrive after the last label finished its queries
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "batch: run canceled")
	}

	return records, nil
}

// resolve walks one label through its states.
func (o *Orchestrator) resolve(ctx context.Context, p place.Place) (reconcile.Record, error) {
	logger := o.logger.With(zap.String("place", p.Label))
	state := StatePending

	step := func(next State) {
		logger.Debug("state", zap.Stringer("from", state), zap.Stringer("to", next))
		state = next
	}

	if err := ctx.Err(); err != nil {
		return reconcile.Record{}, eris.Wrap(err, "batch: run canceled")
	}

	a := o.a.Query(ctx, p.Label)
	if err := ctx.Err(); err != nil {
		return reconcile.Record{}, eris.Wrapf(err, "batch: run canceled at %q", p.Label)
	}

	step(StateQueriedA)

	b := o.b.Query(ctx, p.Label)
	if err := ctx.Err(); err != nil {
		return reconcile.Record{}, eris.Wrapf(err, "batch: run canceled at %q", p.Label)
	}

	step(StateQueriedB)

	rec := reconcile.Resolve(p.Label, p.Region, a, b, o.threshold)

	step(StateResolved)

	if a.Status == geocode.StatusError || b.Status == geocode.StatusError {
		logger.Warn("source lookup failed",
			zap.String(string(o.a.Name()), a.Err),
			zap.String(string(o.b.Name()), b.Err),
			zap.String("outcome", string(rec.Outcome)),
		)
	}

	return rec, nil
}

func (o *Orchestrator) report(n int, rec reconcile.Record) error {
	if err := writeLine(o.progress, n, rec); err != nil {
		return eris.Wrap(err, "batch: writing progress")
	}

	if o.bar != nil {
		if err := o.bar.Add(1); err != nil {
			o.logger.Debug("updating progress bar", zap.Error(err))
		}
	}

	return nil
}
