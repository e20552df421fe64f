package resolve

import (
	"log"

	"github.com/FlyrPro/Flyr-Backend/internal/config"
	"github.com/FlyrPro/Flyr-Backend/internal/db"
	"github.com/FlyrPro/Flyr-Backend/internal/health"
	"github.com/FlyrPro/Flyr-Backend/internal/source"
	"github.com/FlyrPro/Flyr-Backend/internal/source/gold"

	// Import geocoders to register them via init()
	_ "github.com/FlyrPro/Flyr-Backend/internal/source/mapbox"
)

// Service is the active resolver, initialized in Init() from
// environment configuration.
var Service *Resolver

// Monitor caches the gold source's reachability.
var Monitor *health.Monitor

func Init(cfg config.Config) {
	goldSource := gold.New(db.DB)

	Monitor = health.NewMonitor(goldSource, health.Config{
		TTL:          cfg.Health.TTL.Std(),
		ProbeTimeout: cfg.Health.ProbeTimeout.Std(),
	})

	srcCfg := source.LoadFromEnv()
	fallback, err := source.NewGeocoder(srcCfg)
	if err != nil {
		log.Fatalf("[resolve] failed to initialize %s geocoder: %v", srcCfg.Geocoder, err)
	}

	Service = NewResolver(goldSource, fallback, Monitor, Config{
		GoldTimeout:     cfg.Resolve.GoldTimeout.Std(),
		FallbackTimeout: cfg.Resolve.FallbackTimeout.Std(),
	})
	log.Printf("[resolve] initialized with %s fallback geocoder", fallback.Name())
}
