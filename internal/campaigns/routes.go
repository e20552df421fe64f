package campaigns

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Post("/{id}/provision", ProvisionCampaign)
	r.Post("/{id}/link", LinkCampaign)
	r.Get("/{id}/addresses", ListCampaignAddresses)
	r.Get("/{id}/buildings", GetCampaignBuildings)
	r.Get("/{id}/links", ListCampaignLinks)

	return r
}
