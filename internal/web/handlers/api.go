package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pv-groupings/internal/compare"
	"github.com/pv-groupings/internal/review"
)

// Config represents the web server configuration (simplified)
type Config struct {
	Features struct {
		ExportEnabled bool `json:"export_enabled"`
		ReviewEnabled bool `json:"review_enabled"`
	} `json:"features"`
}

// APIHandler handles general API endpoints
type APIHandler struct {
	Data   *Data
	Sink   review.Sink
	Config *Config
	Logger *slog.Logger
}

// StatsResponse represents overall statistics
type StatsResponse struct {
	Groups     int            `json:"groups"`
	Members    int            `json:"members"`
	Located    int            `json:"located"`
	Reviewed   int            `json:"reviewed"`
	Valid      int            `json:"valid"`
	Comparison map[string]int `json:"comparison"`
}

// GetStats returns review progress and the comparison summary
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	var stats StatsResponse
	for _, id := range h.Data.GroupIDs() {
		members, _ := h.Data.Members(id)
		stats.Groups++
		stats.Members += len(members)
		for _, m := range members {
			if len(m.Coords) > 0 {
				stats.Located++
			}
		}
	}

	if h.Sink != nil {
		results, err := h.Sink.Results(r.Context())
		if err != nil {
			h.Logger.Error("failed to read review results", "error", err)
			http.Error(w, "Results unavailable", http.StatusInternalServerError)
			return
		}
		stats.Reviewed = len(results)
		for _, res := range results {
			if res.IsValid {
				stats.Valid++
			}
		}
	}

	summary := compare.Summarize(h.Data.Comparison)
	stats.Comparison = make(map[string]int, len(compare.Categories))
	for _, c := range compare.Categories {
		stats.Comparison[c.String()] = summary[c]
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseIntParam parses a string parameter as int with default value
func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return defaultVal
}
