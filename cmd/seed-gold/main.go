package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/paulmach/orb/geojson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/FlyrPro/Flyr-Backend/internal/source/gold"
)

func main() {
	var (
		geojsonPath = flag.String("geojson", "", "path to an addresses FeatureCollection")
		dbURL       = flag.String("db", "", "DATABASE_URL")
	)
	flag.Parse()

	if *geojsonPath == "" || *dbURL == "" {
		flag.Usage()
		os.Exit(2)
	}

	raw, err := os.ReadFile(*geojsonPath)
	if err != nil {
		log.Fatal(err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		log.Fatalf("parsing %s: %v", *geojsonPath, err)
	}

	db, err := gorm.Open(postgres.Open(*dbURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("connecting: %v", err)
	}

	inserted, err := gold.Seed(context.Background(), db, fc)
	if err != nil {
		log.Fatalf("seeding failed after %d rows: %v", inserted, err)
	}
	log.Printf("seeded %d gold addresses", inserted)
}
