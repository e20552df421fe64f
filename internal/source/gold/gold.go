// Package gold implements the authoritative address source on top of
// the managed Postgres/PostGIS datastore. The gold.addresses table is
// owned by the surrounding platform; the runtime paths here only read
// it (Seed is a dev helper).
package gold

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"gorm.io/gorm"

	"github.com/FlyrPro/Flyr-Backend/internal/source"
)

type Source struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Source {
	return &Source{db: db}
}

func (s *Source) Name() string { return "gold" }

const candidateColumns = `
	house_number,
	COALESCE(street, '') AS street,
	COALESCE(locality, '') AS locality,
	COALESCE(region, '') AS region,
	COALESCE(postal_code, '') AS postal_code,
	COALESCE(country, '') AS country,
	COALESCE(formatted, '') AS formatted,
	ST_X(geom::geometry) AS lon,
	ST_Y(geom::geometry) AS lat
`

// QueryNearest returns up to limit gold addresses ordered by distance
// from center, using the KNN index on the geometry column.
func (s *Source) QueryNearest(ctx context.Context, center orb.Point, limit int) ([]source.Candidate, error) {
	start := time.Now()

	query := fmt.Sprintf(`
		SELECT %s
		FROM gold.addresses
		ORDER BY geom <-> ST_SetSRID(ST_MakePoint(?, ?), 4326)
		LIMIT ?
	`, candidateColumns)

	rows, err := s.db.WithContext(ctx).Raw(query, center.Lon(), center.Lat(), limit).Rows()
	if err != nil {
		return nil, fmt.Errorf("%w: nearest query: %v", source.ErrUnavailable, err)
	}
	defer rows.Close()

	candidates, err := scanCandidates(rows)
	if err != nil {
		return nil, err
	}

	source.LogResponse(s.Name(), time.Since(start), len(candidates))
	return candidates, nil
}

// QuerySameStreet returns up to limit gold addresses on the given
// street near seed. street and locality must already be normalized
// (see the streets package); the comparison normalizes the stored side
// the same way.
func (s *Source) QuerySameStreet(ctx context.Context, seed orb.Point, street, locality string, limit int) ([]source.Candidate, error) {
	start := time.Now()

	query := fmt.Sprintf(`
		SELECT %s
		FROM gold.addresses
		WHERE UPPER(TRIM(street)) = ?
		  AND (? = '' OR UPPER(TRIM(locality)) = ?)
		ORDER BY geom <-> ST_SetSRID(ST_MakePoint(?, ?), 4326)
		LIMIT ?
	`, candidateColumns)

	rows, err := s.db.WithContext(ctx).
		Raw(query, street, locality, locality, seed.Lon(), seed.Lat(), limit).Rows()
	if err != nil {
		return nil, fmt.Errorf("%w: same-street query: %v", source.ErrUnavailable, err)
	}
	defer rows.Close()

	candidates, err := scanCandidates(rows)
	if err != nil {
		return nil, err
	}

	source.LogResponse(s.Name(), time.Since(start), len(candidates))
	return candidates, nil
}

// QueryByPolygon returns every gold address whose point falls inside
// polygon. A non-empty region narrows the scan for index selectivity;
// callers retry once without it when a filtered query comes back empty.
func (s *Source) QueryByPolygon(ctx context.Context, polygon orb.Ring, region string) ([]source.Candidate, error) {
	start := time.Now()

	poly := wkt.MarshalString(orb.Polygon{polygon})

	query := fmt.Sprintf(`
		SELECT %s
		FROM gold.addresses
		WHERE ST_Contains(ST_GeomFromText(?, 4326), geom::geometry)
		  AND (? = '' OR region = ?)
	`, candidateColumns)

	rows, err := s.db.WithContext(ctx).Raw(query, poly, region, region).Rows()
	if err != nil {
		return nil, fmt.Errorf("%w: polygon query: %v", source.ErrUnavailable, err)
	}
	defer rows.Close()

	candidates, err := scanCandidates(rows)
	if err != nil {
		return nil, err
	}

	source.LogResponse(s.Name(), time.Since(start), len(candidates))
	return candidates, nil
}

// Ping issues the cheap round-trip the health monitor uses: a LIMIT-1
// KNN lookup at the coordinate, exercising the same index as real
// lookups.
func (s *Source) Ping(ctx context.Context, p orb.Point) error {
	var one int
	err := s.db.WithContext(ctx).Raw(`
		SELECT 1
		FROM gold.addresses
		ORDER BY geom <-> ST_SetSRID(ST_MakePoint(?, ?), 4326)
		LIMIT 1
	`, p.Lon(), p.Lat()).Scan(&one).Error
	if err != nil {
		return fmt.Errorf("%w: ping: %v", source.ErrUnavailable, err)
	}
	return nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanCandidates(rows rowScanner) ([]source.Candidate, error) {
	var out []source.Candidate
	for rows.Next() {
		var c source.Candidate
		var lon, lat float64
		if err := rows.Scan(
			&c.HouseNumber,
			&c.Street,
			&c.Locality,
			&c.Region,
			&c.PostalCode,
			&c.Country,
			&c.Formatted,
			&lon,
			&lat,
		); err != nil {
			return nil, fmt.Errorf("scan gold candidate: %w", err)
		}
		c.Point = orb.Point{lon, lat}
		c.Origin = source.OriginGold
		out = append(out, c.WithHouseKey())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading rows: %v", source.ErrUnavailable, err)
	}
	return out, nil
}
