package handlers

import (
	"net/http"

	"github.com/pv-groupings/internal/compare"
)

// ComparisonHandler serves the partition comparison
type ComparisonHandler struct {
	Data   *Data
	Config *Config
}

// ComparisonRow is one comparison record. GroupID is null for reference
// groups missing from the candidate partition.
type ComparisonRow struct {
	GroupID      *int   `json:"group_id"`
	ReferenceKey string `json:"ssid"`
	Code         int    `json:"failed_grouping"`
	Category     string `json:"category"`
}

// ComparisonResponse lists comparison rows
type ComparisonResponse struct {
	Rows  []ComparisonRow `json:"rows"`
	Total int             `json:"total"`
}

// ListComparison returns comparison rows, optionally filtered by category
// code or name
func (h *ComparisonHandler) ListComparison(w http.ResponseWriter, r *http.Request) {
	records, ok := h.filtered(w, r)
	if !ok {
		return
	}

	response := ComparisonResponse{Rows: make([]ComparisonRow, 0, len(records)), Total: len(records)}
	for _, rec := range records {
		row := ComparisonRow{
			ReferenceKey: string(rec.ReferenceKey),
			Code:         int(rec.Category),
			Category:     rec.Category.String(),
		}
		if rec.GroupID.Valid {
			id := rec.GroupID.ID
			row.GroupID = &id
		}
		response.Rows = append(response.Rows, row)
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *ComparisonHandler) filtered(w http.ResponseWriter, r *http.Request) ([]compare.MatchRecord, bool) {
	raw := r.URL.Query().Get("category")
	if raw == "" {
		return h.Data.Comparison, true
	}
	category, err := compare.ParseCategory(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	var records []compare.MatchRecord
	for _, rec := range h.Data.Comparison {
		if rec.Category == category {
			records = append(records, rec)
		}
	}
	return records, true
}
