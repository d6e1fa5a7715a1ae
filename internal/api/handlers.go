package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mindmate-hq/routellm/internal/llm"
	"github.com/mindmate-hq/routellm/internal/routellm"
	"github.com/mindmate-hq/routellm/internal/settings"
)

const (
	defaultRecentLimit  = 20
	defaultHistoryLimit = 50
	maxListLimit        = 500
)

// RouteRequest is the body of route and estimate calls
type RouteRequest struct {
	Query        string `json:"query"`
	Feature      string `json:"feature"`
	PrivacyLevel string `json:"privacy_level"`
	Role         string `json:"role,omitempty"`
}

func (req RouteRequest) toQuery() (routellm.Query, error) {
	feature, err := routellm.ParseFeature(req.Feature)
	if err != nil {
		return routellm.Query{}, err
	}
	role, err := routellm.ParseRole(req.Role)
	if err != nil {
		return routellm.Query{}, err
	}
	q := routellm.Query{
		Query:        req.Query,
		Feature:      feature,
		PrivacyLevel: routellm.ParsePrivacyLevel(req.PrivacyLevel),
		Role:         role,
	}
	return q, q.Validate()
}

// OptimizationLevelRequest updates the optimization level
type OptimizationLevelRequest struct {
	OptimizationLevel string `json:"optimization_level"`
}

// FallbackRequest toggles the local fallback
type FallbackRequest struct {
	Enabled *bool `json:"enabled"`
}

// KeyRequest carries a provider API key
type KeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

// SettingsResponse is returned by every settings endpoint
type SettingsResponse struct {
	settings.OptimizationConfig
	Persisted bool `json:"persisted"`
}

func (s *Server) routeQuery(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q, err := req.toQuery()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.routing.Route(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch err := result.Err(); {
	case err == nil:
		respondJSON(w, http.StatusOK, result)
	case errors.Is(err, routellm.ErrNoEligibleProvider):
		respondJSON(w, http.StatusServiceUnavailable, result)
	default:
		respondJSON(w, http.StatusBadGateway, result)
	}
}

func (s *Server) estimateCost(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q, err := req.toQuery()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	estimate, err := s.routing.EstimateCost(r.Context(), q)
	if errors.Is(err, routellm.ErrNoEligibleProvider) {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, estimate)
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"providers": s.routing.Providers(),
	})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SettingsResponse{
		OptimizationConfig: s.settings.GetConfig(r.Context()),
		Persisted:          true,
	})
}

func (s *Server) setOptimizationLevel(w http.ResponseWriter, r *http.Request) {
	var req OptimizationLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	level, err := settings.ParseOptimizationLevel(req.OptimizationLevel)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondSettingsUpdate(w, r, s.settings.SetOptimizationLevel(r.Context(), level))
}

func (s *Server) setFallbackToLocal(w http.ResponseWriter, r *http.Request) {
	var req FallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Enabled == nil {
		respondError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	s.respondSettingsUpdate(w, r, s.settings.SetFallbackToLocal(r.Context(), *req.Enabled))
}

// respondSettingsUpdate reports the current settings after an update. A
// storage failure still leaves the change applied in memory.
func (s *Server) respondSettingsUpdate(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
	case errors.Is(err, settings.ErrConfigUnavailable):
		log.Warn().Err(err).Msg("settings change not persisted")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, SettingsResponse{
		OptimizationConfig: s.settings.GetConfig(r.Context()),
		Persisted:          err == nil,
	})
}

func (s *Server) validateKey(w http.ResponseWriter, r *http.Request) {
	if s.keys == nil {
		respondError(w, http.StatusServiceUnavailable, "key validation not configured")
		return
	}

	var req KeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	provider, err := llm.ParseProvider(req.Provider)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	valid := s.keys.ValidateKey(r.Context(), provider, req.APIKey)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"provider":   provider,
		"valid":      valid,
		"masked_key": llm.MaskAPIKey(req.APIKey),
	})
}

func (s *Server) maskKey(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"masked_key": llm.MaskAPIKey(req.APIKey),
	})
}

func (s *Server) getUsage(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultRecentLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tracker := s.routing.Usage()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":  tracker.GetStats(),
		"recent": tracker.RecentRecords(limit),
	})
}

func (s *Server) exportUsage(w http.ResponseWriter, r *http.Request) {
	data, err := s.routing.Usage().ExportJSON()
	if err != nil {
		log.Error().Err(err).Msg("failed to export usage")
		respondError(w, http.StatusInternalServerError, "failed to export usage")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="routellm-usage.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) getUsageHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusServiceUnavailable, "usage history not configured")
		return
	}

	limit, err := parseLimit(r, defaultHistoryLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.history.ListUsageRecords(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list usage records")
		respondError(w, http.StatusInternalServerError, "failed to list usage records")
		return
	}
	if records == nil {
		records = []llm.UsageRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}
