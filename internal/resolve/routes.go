package resolve

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Get("/nearest", ResolveNearest)
	r.Get("/same-street", ResolveSameStreet)
	r.Get("/health", SourceHealth)

	return r
}
