package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pv-groupings/internal/geometry"
	"github.com/pv-groupings/internal/metrics"
	"github.com/pv-groupings/internal/review"
)

// GroupsHandler handles group listing and review endpoints
type GroupsHandler struct {
	Data      *Data
	Sink      review.Sink
	Config    *Config
	SessionID string
	Logger    *slog.Logger
}

// GroupSummary is one row of the group list
type GroupSummary struct {
	ID      int `json:"id"`
	Members int `json:"members"`
}

// GroupsListResponse represents a paginated list of groups
type GroupsListResponse struct {
	Groups  []GroupSummary `json:"groups"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

// MemberResponse is one grouped object with its coordinates
type MemberResponse struct {
	Object string            `json:"object"`
	Coords []geometry.LatLon `json:"coords"`
}

// GroupResponse is a group with members and the point to centre a map on
type GroupResponse struct {
	ID          int              `json:"id"`
	Members     []MemberResponse `json:"members"`
	Centre      *geometry.LatLon `json:"centre"`
	NextGroupID *int             `json:"next_group_id"`
}

// ValidationRequest is a reviewer's judgement on a group
type ValidationRequest struct {
	IsValid  *bool    `json:"is_valid"`
	Flags    []string `json:"flags"`
	Reviewer string   `json:"reviewer"`
}

// ValidationResponse confirms a recorded judgement
type ValidationResponse struct {
	GroupID     int  `json:"group_id"`
	NextGroupID *int `json:"next_group_id"`
}

// ListGroups returns a paginated list of groups in review order
func (h *GroupsHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := parseIntParam(query.Get("page"), 1)
	perPage := parseIntParam(query.Get("per_page"), 100)
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 100
	}
	if perPage > 1000 {
		perPage = 1000
	}

	ids := h.Data.GroupIDs()
	response := GroupsListResponse{
		Groups:  []GroupSummary{},
		Total:   len(ids),
		Page:    page,
		PerPage: perPage,
	}
	if page-1 > len(ids)/perPage {
		writeJSON(w, http.StatusOK, response)
		return
	}
	start := (page - 1) * perPage
	for i := start; i < len(ids) && i < start+perPage; i++ {
		members, _ := h.Data.Members(ids[i])
		response.Groups = append(response.Groups, GroupSummary{ID: ids[i], Members: len(members)})
	}

	writeJSON(w, http.StatusOK, response)
}

// GetGroup returns a single group with member geometry
func (h *GroupsHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	members, ok := h.Data.Members(id)
	if !ok {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	}

	response := GroupResponse{ID: id, NextGroupID: h.next(id)}
	for _, m := range members {
		coords := m.Coords
		if coords == nil {
			coords = []geometry.LatLon{}
		}
		response.Members = append(response.Members, MemberResponse{Object: string(m.Object), Coords: coords})
	}
	if centre, ok := geometry.Centre(members); ok {
		response.Centre = &centre
	}

	writeJSON(w, http.StatusOK, response)
}

// Validate records a reviewer's judgement and points at the next group
func (h *GroupsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if !h.Config.Features.ReviewEnabled {
		http.Error(w, "Feature disabled", http.StatusForbidden)
		return
	}
	id, ok := groupID(w, r)
	if !ok {
		return
	}
	if _, ok := h.Data.Members(id); !ok {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	}

	var req ValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}
	if req.IsValid == nil {
		http.Error(w, "is_valid is required", http.StatusBadRequest)
		return
	}

	result := review.Result{
		IsValid:   *req.IsValid,
		Flags:     req.Flags,
		Reviewer:  req.Reviewer,
		SessionID: h.SessionID,
	}
	if err := h.Sink.AppendOrReplace(r.Context(), id, result); err != nil {
		if errors.Is(err, review.ErrInvalidResult) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.Logger.Error("failed to record validation", "group_id", id, "error", err)
		http.Error(w, "Failed to record validation", http.StatusInternalServerError)
		return
	}
	metrics.ReviewResults.WithLabelValues(strconv.FormatBool(*req.IsValid)).Inc()
	h.Logger.Info("group validated", "group_id", id, "is_valid", *req.IsValid, "flags", req.Flags)

	writeJSON(w, http.StatusOK, ValidationResponse{GroupID: id, NextGroupID: h.next(id)})
}

// ListValidations returns every recorded judgement
func (h *GroupsHandler) ListValidations(w http.ResponseWriter, r *http.Request) {
	results, err := h.Sink.Results(r.Context())
	if err != nil {
		h.Logger.Error("failed to read review results", "error", err)
		http.Error(w, "Results unavailable", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []review.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *GroupsHandler) next(id int) *int {
	if next, ok := h.Data.NextGroupID(id); ok {
		return &next
	}
	return nil
}

func groupID(w http.ResponseWriter, r *http.Request) (int, bool) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "Invalid group ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
