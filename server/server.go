// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes a resolved result set over a small read-only JSON
// API for reviewing divergences.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jcodagnone/terroir/geocode"
	"github.com/jcodagnone/terroir/place"
	"github.com/jcodagnone/terroir/reconcile"
	"github.com/jcodagnone/terroir/store"
	"github.com/jcodagnone/terroir/utils/textutils"
)

const (
	defaultPerPage         = 50
	maxPerPage             = 500
	defaultDivergenceLimit = 20
)

// Server serves one result set. The set is treated as read-only.
type Server struct {
	results   *store.ResultSet
	wines     place.WineIndex
	repo      store.PlaceRepository
	threshold float64
}

// New creates a Server. wines and repo may be nil; without repo the cell
// summary is unavailable.
func New(results *store.ResultSet, wines place.WineIndex, repo store.PlaceRepository, thresholdKm float64) *Server {
	return &Server{
		results:   results,
		wines:     wines,
		repo:      repo,
		threshold: thresholdKm,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/api/places", s.listPlaces)
	r.GET("/api/place", s.getPlace)
	r.GET("/api/stats", s.getStats)
	r.GET("/api/divergences", s.listDivergences)
	r.GET("/api/cells", s.listCells)
	r.GET("/map.geojson", s.mapGeoJSON)

	return r
}

// Run serves on addr until ctx is done. addr must be a loopback address.
func (s *Server) Run(ctx context.Context, addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return eris.Wrapf(err, "server: invalid address %q", addr)
	}

	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return eris.Errorf("server: refusing to bind %q, only loopback addresses are allowed", addr)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		zap.L().Info("review API listening", zap.String("addr", "http://"+addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return eris.Wrap(err, "server: listening")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server: shutting down")
		}

		return nil
	}
}

func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		ctx.Next()

		zap.L().Debug("request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func intQuery(ctx *gin.Context, name string, def int) int {
	v := ctx.Query(name)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}

	return n
}

func (s *Server) view(rec reconcile.Record) gin.H {
	return gin.H{
		"record":     store.EncodeRecord(rec),
		"country":    place.Country(rec.Place),
		"wine_count": len(s.wines[rec.Place]),
	}
}

func (s *Server) listPlaces(ctx *gin.Context) {
	q := textutils.LowerASCIIFolding(ctx.Query("q"))
	source := geocode.SourceID(ctx.Query("source"))
	outcome := reconcile.Outcome(ctx.Query("outcome"))

	page := max(intQuery(ctx, "page", 1), 1)
	perPage := intQuery(ctx, "per_page", defaultPerPage)

	if perPage == 0 {
		perPage = defaultPerPage
	}

	perPage = min(perPage, maxPerPage)

	var matched []reconcile.Record

	for _, rec := range s.results.Records() {
		if q != "" && !strings.Contains(textutils.LowerASCIIFolding(rec.Place), q) {
			continue
		}

		if source != "" && rec.ChosenSource != source {
			continue
		}

		if outcome != "" && rec.Outcome != outcome {
			continue
		}

		matched = append(matched, rec)
	}

	// any page past the last one is empty; clamping keeps the offset from
	// overflowing
	pages := (len(matched) + perPage - 1) / perPage
	start := min((min(page, pages+1)-1)*perPage, len(matched))
	end := min(start+perPage, len(matched))

	places := make([]gin.H, 0, end-start)
	for _, rec := range matched[start:end] {
		places = append(places, s.view(rec))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"places":   places,
		"total":    len(matched),
		"page":     page,
		"per_page": perPage,
	})
}

func (s *Server) getPlace(ctx *gin.Context) {
	label := ctx.Query("label")
	if label == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "label query parameter is required"})

		return
	}

	rec, ok := s.results.Get(label)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "place not found"})

		return
	}

	ctx.JSON(http.StatusOK, s.view(rec))
}

func (s *Server) getStats(ctx *gin.Context) {
	stats := s.results.Statistics()

	ctx.JSON(http.StatusOK, gin.H{
		"statistics":   stats,
		"rates":        stats.Rates(),
		"threshold_km": s.threshold,
	})
}

func (s *Server) listDivergences(ctx *gin.Context) {
	limit := intQuery(ctx, "limit", defaultDivergenceLimit)

	recs := reconcile.LargestDivergences(s.results.Records(), limit)

	places := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		places = append(places, s.view(rec))
	}

	ctx.JSON(http.StatusOK, gin.H{"places": places, "threshold_km": s.threshold})
}

func (s *Server) listCells(ctx *gin.Context) {
	if s.repo == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "no database configured"})

		return
	}

	res := intQuery(ctx, "res", 5)

	counts, err := s.repo.CountByCell(res)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"res": res, "cells": counts})
}

func (s *Server) mapGeoJSON(ctx *gin.Context) {
	ctx.Header("Content-Type", "application/geo+json")

	if _, err := store.WriteGeoJSON(ctx.Writer, s.results, s.wines); err != nil {
		zap.L().Error("writing geojson", zap.Error(err))
		ctx.Status(http.StatusInternalServerError)
	}
}
