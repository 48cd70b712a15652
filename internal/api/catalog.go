package api

import (
	"net/http"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/nl2sql"
)

type providerView struct {
	Kind         nl2sql.Kind `json:"kind"`
	Models       []string    `json:"models"`
	DefaultModel string      `json:"default_model"`
}

func handleListDatabases(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Databases == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATABASES_NOT_CONFIGURED", "database pool is not configured", false, nil)
		return
	}
	databases := deps.Databases.Databases()
	if databases == nil {
		databases = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dialect":   cfg.Database.Dialect,
		"databases": databases,
	})
}

func handleListProviders(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Providers == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PROVIDERS_NOT_CONFIGURED", "no completion provider is configured", false, nil)
		return
	}
	catalog := deps.Providers.Catalog()
	views := make([]providerView, 0, len(catalog))
	for _, kind := range catalog.Kinds() {
		views = append(views, providerView{
			Kind:         kind,
			Models:       catalog.Models(kind),
			DefaultModel: catalog.DefaultModel(kind),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": views})
}
