// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"fmt"

	"github.com/uber/h3-go/v4"
)

// CellResolutions are the H3 resolutions stored for every resolved place:
// roughly country (3), wine region (5) and valley (7) scale.
var CellResolutions = []int{3, 5, 7}

// Cells returns the H3 cell of the point at each of CellResolutions.
func (p Point) Cells() ([]int64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	latLng := h3.NewLatLng(p.Lat, p.Lng)
	cells := make([]int64, len(CellResolutions))

	for i, res := range CellResolutions {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return nil, fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
		}

		cells[i] = int64(cell)
	}

	return cells, nil
}
