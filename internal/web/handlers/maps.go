package handlers

import (
	"net/http"
	"strconv"

	"github.com/pv-groupings/internal/geometry"
)

// MapsHandler handles map-related endpoints
type MapsHandler struct {
	Data   *Data
	Config *Config
}

// GeoJSONResponse represents a GeoJSON FeatureCollection
type GeoJSONResponse struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one located object
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry is a GeoJSON Point or LineString in lon/lat order
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// GetGeoJSON returns located group members for map display. The optional
// group parameter restricts the output to one group.
func (h *MapsHandler) GetGeoJSON(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	ids := h.Data.GroupIDs()
	if g := query.Get("group"); g != "" {
		id, err := strconv.Atoi(g)
		if err != nil {
			http.Error(w, "Invalid group ID", http.StatusBadRequest)
			return
		}
		if _, ok := h.Data.Members(id); !ok {
			http.Error(w, "Group not found", http.StatusNotFound)
			return
		}
		ids = []int{id}
	}
	limit := parseIntParam(query.Get("limit"), 10000)

	response := GeoJSONResponse{Type: "FeatureCollection", Features: []Feature{}}
	for _, id := range ids {
		members, _ := h.Data.Members(id)
		for _, m := range members {
			if len(m.Coords) == 0 {
				continue
			}
			if len(response.Features) >= limit {
				break
			}
			response.Features = append(response.Features, Feature{
				Type:     "Feature",
				Geometry: toGeometry(m.Coords),
				Properties: map[string]any{
					"group_id": id,
					"object":   string(m.Object),
				},
			})
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func toGeometry(coords []geometry.LatLon) Geometry {
	if len(coords) == 1 {
		return Geometry{Type: "Point", Coordinates: []float64{coords[0].Lon, coords[0].Lat}}
	}
	line := make([][]float64, len(coords))
	for i, c := range coords {
		line[i] = []float64{c.Lon, c.Lat}
	}
	return Geometry{Type: "LineString", Coordinates: line}
}
