package handlers

import (
	"fmt"
	"net/http"

	"github.com/pv-groupings/internal/compare"
)

// ExportComparison streams the comparison table as CSV, honouring the same
// category filter as ListComparison
func (h *ComparisonHandler) ExportComparison(w http.ResponseWriter, r *http.Request) {
	if !h.Config.Features.ExportEnabled {
		http.Error(w, "Export feature disabled", http.StatusForbidden)
		return
	}
	records, ok := h.filtered(w, r)
	if !ok {
		return
	}

	column := r.URL.Query().Get("reference_column")
	if column == "" {
		column = "ssid"
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "comparison.csv"))
	if err := compare.WriteCSV(w, records, column); err != nil {
		http.Error(w, "Export failed", http.StatusInternalServerError)
	}
}
