package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/FlyrPro/Flyr-Backend/internal/campaigns"
	"github.com/FlyrPro/Flyr-Backend/internal/config"
	"github.com/FlyrPro/Flyr-Backend/internal/db"
)

func main() {
	var (
		campaignID = flag.String("campaign", "", "campaign UUID")
		ownerID    = flag.String("owner", "", "owner UUID (optional)")
		boundary   = flag.String("boundary", "", "path to a GeoJSON polygon boundary")
		region     = flag.String("region", "", "optional region pre-filter for the gold scan")
		link       = flag.Bool("link", false, "run the spatial linker after provisioning")
	)
	flag.Parse()

	if *campaignID == "" || *boundary == "" {
		flag.Usage()
		os.Exit(2)
	}

	id, err := uuid.Parse(*campaignID)
	if err != nil {
		log.Fatalf("invalid campaign ID: %v", err)
	}
	var owner uuid.UUID
	if *ownerID != "" {
		if owner, err = uuid.Parse(*ownerID); err != nil {
			log.Fatalf("invalid owner ID: %v", err)
		}
	}

	raw, err := os.ReadFile(*boundary)
	if err != nil {
		log.Fatal(err)
	}
	geom, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		log.Fatalf("parsing %s: %v", *boundary, err)
	}
	poly, ok := geom.Geometry().(orb.Polygon)
	if !ok || len(poly) == 0 {
		log.Fatalf("%s is not a polygon", *boundary)
	}

	_ = godotenv.Load(".env.local")
	db.Connect()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	campaigns.Init(cfg)

	ctx := context.Background()
	result, err := campaigns.Prov.Provision(ctx, id, owner, poly[0], *region)
	if err != nil {
		log.Fatalf("provisioning failed: %v", err)
	}
	log.Printf("provisioned %d addresses (source=%s gold=%d bulk=%d)",
		result.Committed, result.Source, result.GoldCount, result.BulkCount)

	if !*link {
		return
	}
	if result.Snapshot == nil {
		log.Fatal("no buildings snapshot to link against; campaign provisioned from gold only")
	}
	fc, err := campaigns.Bulk.FetchFeatureCollection(ctx, result.Snapshot.BuildingsKey)
	if err != nil {
		log.Fatalf("fetching buildings snapshot: %v", err)
	}
	features, skipped := campaigns.BuildingFeaturesFromCollection(fc)
	summary, err := campaigns.Spatial.Link(ctx, id, features, result.Snapshot.ReleaseTag)
	if err != nil {
		log.Fatalf("linking failed: %v", err)
	}
	log.Printf("linked %d addresses, %d orphans, %d malformed buildings skipped",
		summary.Linked, summary.Orphans, skipped)
}
