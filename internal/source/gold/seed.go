package gold

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
)

// Seed loads an addresses feature collection into gold.addresses.
// It is a development helper behind cmd/seed-gold; production gold
// data is maintained by the platform's ingestion jobs.
func Seed(ctx context.Context, db *gorm.DB, fc *geojson.FeatureCollection) (int, error) {
	err := db.WithContext(ctx).Exec(`
		CREATE SCHEMA IF NOT EXISTS gold;
		CREATE TABLE IF NOT EXISTS gold.addresses (
			id BIGSERIAL PRIMARY KEY,
			house_number TEXT,
			street TEXT,
			locality TEXT,
			region TEXT,
			postal_code TEXT,
			country TEXT,
			formatted TEXT,
			geom GEOGRAPHY(POINT, 4326)
		);
		CREATE INDEX IF NOT EXISTS addresses_geom_idx ON gold.addresses USING GIST (geom);
	`).Error
	if err != nil {
		return 0, fmt.Errorf("creating gold schema: %w", err)
	}

	inserted := 0
	for _, f := range fc.Features {
		point, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		err := db.WithContext(ctx).Exec(`
			INSERT INTO gold.addresses
				(house_number, street, locality, region, postal_code, country, formatted, geom)
			VALUES (?, ?, ?, ?, ?, ?, ?, ST_SetSRID(ST_MakePoint(?, ?), 4326))
		`,
			prop(f, "number"), prop(f, "street"), prop(f, "city"),
			prop(f, "region"), prop(f, "postcode"), prop(f, "country"),
			prop(f, "formatted"), point.Lon(), point.Lat(),
		).Error
		if err != nil {
			return inserted, fmt.Errorf("inserting gold row: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

func prop(f *geojson.Feature, key string) string {
	if v, ok := f.Properties[key].(string); ok {
		return v
	}
	return ""
}
