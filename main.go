package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/FlyrPro/Flyr-Backend/internal/campaigns"
	"github.com/FlyrPro/Flyr-Backend/internal/config"
	"github.com/FlyrPro/Flyr-Backend/internal/db"
	"github.com/FlyrPro/Flyr-Backend/internal/middleware"
	"github.com/FlyrPro/Flyr-Backend/internal/resolve"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

func main() {
	_ = godotenv.Load(".env.local")
	db.Connect()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "5050"
	}

	campaigns.Init(cfg)
	resolve.Init(cfg)

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)
	r.Get("/", RootHandler)
	r.Get("/health", HealthHandler)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.APIKeyMiddleware)
		api.Mount("/campaigns", campaigns.SetupRoutes())
		api.Mount("/resolve", resolve.SetupRoutes())
	})

	fmt.Println("Server listening on port :" + port + "...")

	http.ListenAndServe("0.0.0.0:"+port, r)
}
