package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pv-groupings/internal/relation"
)

// RegistryHandler serves REPD installation records
type RegistryHandler struct {
	Data   *Data
	Config *Config
}

// GetInstallation returns the installation with the given REPD id
func (h *RegistryHandler) GetInstallation(w http.ResponseWriter, r *http.Request) {
	ref := relation.ParseObjectID(mux.Vars(r)["id"])
	if !ref.Valid {
		http.Error(w, "Invalid installation ID", http.StatusBadRequest)
		return
	}
	installation, ok := h.Data.Installation[ref.ID]
	if !ok {
		http.Error(w, "Installation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, installation)
}
