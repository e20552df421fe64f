package campaigns

import (
	"log"

	"github.com/FlyrPro/Flyr-Backend/internal/config"
	"github.com/FlyrPro/Flyr-Backend/internal/db"
	"github.com/FlyrPro/Flyr-Backend/internal/source"
	"github.com/FlyrPro/Flyr-Backend/internal/source/bulkextract"
	"github.com/FlyrPro/Flyr-Backend/internal/source/gold"
)

// Package-level services wired by Init. Handler tests substitute
// fakes here directly.
var (
	CampaignStore Store
	Bulk          BulkPipeline
	Prov          *Provisioner
	Spatial       *Linker
)

func Init(cfg config.Config) {
	if err := db.EnsureSchema(db.DB, "geo"); err != nil {
		log.Fatal("Failed to ensure schema geo: ", err)
	}

	if err := db.DB.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Fatal("Failed to enable uuid-ossp extension:", err)
	}

	if err := db.DB.AutoMigrate(
		&Campaign{},
		&CanonicalAddress{},
		&BuildingAddressLink{},
		&CampaignSnapshot{},
		&ProvisionLog{},
	); err != nil {
		log.Fatal("Failed to auto-migrate tables", err)
	}

	srcCfg := source.LoadFromEnv()

	CampaignStore = NewStore(db.DB)
	Bulk = bulkextract.NewClient(srcCfg.ExtractEndpoint)
	Prov = NewProvisioner(gold.New(db.DB), Bulk, CampaignStore, ProvisionConfig{
		GoldCoverageThreshold: cfg.Provision.GoldCoverageThreshold,
		PolygonTimeout:        cfg.Provision.PolygonTimeout.Std(),
		Limits: source.ExtractLimits{
			MaxAddresses: cfg.Provision.MaxAddresses,
			MaxBuildings: cfg.Provision.MaxBuildings,
		},
	})
	Spatial = NewLinker(CampaignStore, LinkerConfig{
		CentroidRadiusM: cfg.Linker.CentroidRadiusM,
		StreetRadiusM:   cfg.Linker.StreetRadiusM,
		FallbackRadiusM: cfg.Linker.FallbackRadiusM,
		StreetThreshold: cfg.Linker.StreetThreshold,
	})

	log.Printf("[campaigns] initialized (extract endpoint %s)", srcCfg.ExtractEndpoint)
}
