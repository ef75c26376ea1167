// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/jcodagnone/terroir/geocode"
	"github.com/jcodagnone/terroir/place"
	"github.com/jcodagnone/terroir/reconcile"
	"github.com/jcodagnone/terroir/spatial"
)

// PlaceRow is one row of the places table.
type PlaceRow struct {
	Place         string            `json:"place"`
	Region        string            `json:"region"`
	Country       string            `json:"country"`
	ChosenSource  geocode.SourceID  `json:"chosen_source"`
	Point         *spatial.Point    `json:"point"`
	Nominatim     *spatial.Point    `json:"nominatim"`
	Wikipedia     *spatial.Point    `json:"wikipedia"`
	WikipediaPage string            `json:"wikipedia_page"`
	DistanceKm    *float64          `json:"distance_km"`
	Outcome       reconcile.Outcome `json:"outcome"`
	WineCount     int               `json:"wine_count"`
	H3Res3        int64             `json:"-"`
	H3Res5        int64             `json:"-"`
	H3Res7        int64             `json:"-"`
}

func (row *PlaceRow) computeH3() error {
	row.H3Res3, row.H3Res5, row.H3Res7 = 0, 0, 0

	if row.Point == nil {
		return nil
	}

	cells, err := row.Point.Cells()
	if err != nil {
		return eris.Wrapf(err, "store: computing h3 cells for %q", row.Place)
	}

	for i, res := range spatial.CellResolutions {
		switch res {
		case 3:
			row.H3Res3 = cells[i]
		case 5:
			row.H3Res5 = cells[i]
		case 7:
			row.H3Res7 = cells[i]
		}
	}

	return nil
}

// NewPlaceRow flattens a record for the places table.
func NewPlaceRow(rec reconcile.Record, wineCount int) *PlaceRow {
	row := &PlaceRow{
		Place:        rec.Place,
		Region:       rec.Region,
		Country:      place.Country(rec.Place),
		ChosenSource: rec.ChosenSource,
		Point:        rec.Chosen,
		Nominatim:    rec.Nominatim.Point,
		Wikipedia:    rec.Wikipedia.Point,
		DistanceKm:   rec.DistanceKm,
		Outcome:      rec.Outcome,
		WineCount:    wineCount,
	}

	if rec.Wikipedia.Found() {
		row.WikipediaPage = rec.Wikipedia.Detail
	}

	return row
}

// CellCount is the number of resolved places inside one H3 cell.
type CellCount struct {
	Cell   int64 `json:"cell"`
	Places int   `json:"places"`
	Wines  int   `json:"wines"`
}

// PlaceRepository handles persistence of resolved places.
type PlaceRepository interface {
	// CreateSchema creates the places table
	CreateSchema() error

	// SavePlaces upserts rows keyed by place
	SavePlaces(rows []*PlaceRow) error

	// GetPlace returns a single place, sql.ErrNoRows when absent
	GetPlace(label string) (*PlaceRow, error)

	// ListPlaces returns places, optionally filtered by outcome
	ListPlaces(outcome *reconcile.Outcome, limit, offset int) ([]*PlaceRow, error)

	// CountPlaces returns the total number of places
	CountPlaces() (int, error)

	// CountByCell groups resolved places by their H3 cell at res
	CountByCell(res int) ([]CellCount, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlPlaceRepository struct {
	db *sql.DB
}

// NewPlaceRepository creates a new place repository.
func NewPlaceRepository(db *sql.DB) PlaceRepository {
	return &sqlPlaceRepository{db: db}
}

// DB returns the underlying database connection for advanced queries.
func (r *sqlPlaceRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlPlaceRepository) CreateSchema() error {
	// DuckDB needs to load the spatial extension
	if _, err := r.db.Exec(`INSTALL spatial; LOAD spatial;`); err != nil {
		return eris.Wrap(err, "store: loading spatial extension")
	}

	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS places (
			place VARCHAR PRIMARY KEY,
			region VARCHAR NOT NULL,
			country VARCHAR NOT NULL,
			chosen_source VARCHAR,
			point POINT_2D,
			nominatim_point POINT_2D,
			wikipedia_point POINT_2D,
			wikipedia_page VARCHAR,
			distance_km DOUBLE,
			outcome VARCHAR NOT NULL,
			wine_count INTEGER NOT NULL DEFAULT 0,
			h3_res3 UBIGINT,
			h3_res5 UBIGINT,
			h3_res7 UBIGINT
		);
	`)
	if err != nil {
		return eris.Wrap(err, "store: creating places table")
	}

	return nil
}

func pointArgs(p *spatial.Point) (any, any) {
	if p == nil {
		return nil, nil
	}

	return p.Lng, p.Lat
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func nullIfZero(v int64) any {
	if v == 0 {
		return nil
	}

	return v
}

func (r *sqlPlaceRepository) SavePlaces(rows []*PlaceRow) error {
	tx, err := r.db.Begin()
	if err != nil {
		return eris.Wrap(err, "store: beginning transaction")
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO places(
			place,
			region,
			country,
			chosen_source,
			point,
			nominatim_point,
			wikipedia_point,
			wikipedia_page,
			distance_km,
			outcome,
			wine_count,
			h3_res3,
			h3_res5,
			h3_res7
		)
		VALUES (?, ?, ?, ?, ST_Point(?, ?), ST_Point(?, ?), ST_Point(?, ?), ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			err = errors.Join(err, rErr)
		}

		return eris.Wrap(err, "store: preparing upsert")
	}
	defer stmt.Close()

	for _, row := range rows {
		if err = row.computeH3(); err != nil {
			_ = tx.Rollback()

			return eris.Wrap(err, "store: saving places")
		}

		x, y := pointArgs(row.Point)
		nx, ny := pointArgs(row.Nominatim)
		wx, wy := pointArgs(row.Wikipedia)

		_, err = stmt.Exec(
			row.Place,
			row.Region,
			row.Country,
			nullIfEmpty(string(row.ChosenSource)),
			x, y,
			nx, ny,
			wx, wy,
			nullIfEmpty(row.WikipediaPage),
			row.DistanceKm,
			string(row.Outcome),
			row.WineCount,
			nullIfZero(row.H3Res3),
			nullIfZero(row.H3Res5),
			nullIfZero(row.H3Res7),
		)
		if err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				err = errors.Join(err, rErr)
			}

			return eris.Wrapf(err, "store: upserting %q", row.Place)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: committing places")
	}

	return nil
}

var baseSelect = `
	SELECT place, region, country, chosen_source,
	       point, nominatim_point, wikipedia_point,
	       wikipedia_page, distance_km, outcome, wine_count,
	       h3_res3, h3_res5, h3_res7
	FROM places
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlace(s rowScanner) (*PlaceRow, error) {
	row := &PlaceRow{}

	var (
		chosenSource, wikipediaPage sql.NullString
		point, nominatim, wikipedia spatial.NullPoint
		distance                    sql.NullFloat64
		h3Res3, h3Res5, h3Res7      sql.NullInt64
		outcome                     string
	)

	err := s.Scan(
		&row.Place, &row.Region, &row.Country, &chosenSource,
		&point, &nominatim, &wikipedia,
		&wikipediaPage, &distance, &outcome, &row.WineCount,
		&h3Res3, &h3Res5, &h3Res7,
	)
	if err != nil {
		return nil, err
	}

	row.ChosenSource = geocode.SourceID(chosenSource.String)
	row.WikipediaPage = wikipediaPage.String
	row.Outcome = reconcile.Outcome(outcome)
	row.Point = point.Ptr()
	row.Nominatim = nominatim.Ptr()
	row.Wikipedia = wikipedia.Ptr()

	if distance.Valid {
		d := distance.Float64
		row.DistanceKm = &d
	}

	row.H3Res3 = h3Res3.Int64
	row.H3Res5 = h3Res5.Int64
	row.H3Res7 = h3Res7.Int64

	return row, nil
}

func (r *sqlPlaceRepository) GetPlace(label string) (*PlaceRow, error) {
	row, err := scanPlace(r.db.QueryRow(baseSelect+" WHERE place = ?", label))
	if err != nil {
		return nil, err
	}

	return row, nil
}

func (r *sqlPlaceRepository) ListPlaces(outcome *reconcile.Outcome, limit, offset int) ([]*PlaceRow, error) {
	query := baseSelect
	args := []any{}

	if outcome != nil {
		query += " WHERE outcome = ?"

		args = append(args, string(*outcome))
	}

	query += " ORDER BY place"

	if limit > 0 {
		query += " LIMIT ? OFFSET ?"

		args = append(args, limit, offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: listing places")
	}
	defer rows.Close()

	var places []*PlaceRow

	for rows.Next() {
		row, err := scanPlace(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scanning place")
		}

		places = append(places, row)
	}

	return places, rows.Err()
}

func (r *sqlPlaceRepository) CountPlaces() (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM places",
	).Scan(&count)

	return count, err
}

func (r *sqlPlaceRepository) CountByCell(res int) ([]CellCount, error) {
	var column string

	switch res {
	case 3:
		column = "h3_res3"
	case 5:
		column = "h3_res5"
	case 7:
		column = "h3_res7"
	default:
		return nil, eris.Errorf("store: unsupported h3 resolution %d", res)
	}

	rows, err := r.db.Query(`
		SELECT ` + column + `, COUNT(*), COALESCE(SUM(wine_count), 0)
		FROM places
		WHERE ` + column + ` IS NOT NULL
		GROUP BY ` + column + `
		ORDER BY 2 DESC, 1
	`)
	if err != nil {
		return nil, eris.Wrap(err, "store: counting by cell")
	}
	defer rows.Close()

	var counts []CellCount

	for rows.Next() {
		var c CellCount
		if err := rows.Scan(&c.Cell, &c.Places, &c.Wines); err != nil {
			return nil, eris.Wrap(err, "store: scanning cell count")
		}

		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// ExportPlaces writes every record of set into repo.
func ExportPlaces(repo PlaceRepository, set *ResultSet, idx place.WineIndex) (int, error) {
	records := set.Records()
	rows := make([]*PlaceRow, 0, len(records))

	for _, rec := range records {
		rows = append(rows, NewPlaceRow(rec, len(idx[rec.Place])))
	}

	if err := repo.SavePlaces(rows); err != nil {
		return 0, err
	}

	return len(rows), nil
}
