package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"jobscout/internal/errors"
	"jobscout/internal/observability"
	"jobscout/internal/search"
	"jobscout/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// SearchResultResponse is the body of a successful POST /search
type SearchResultResponse struct {
	Status string `json:"status"`
	*types.SearchResponse
}

// createSearchHandler wraps the search handler with observability
func (s *Server) createSearchHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := om.Tracer("jobscout.api").Start(r.Context(), "api.search")
		defer span.End()

		var req SearchRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			s.writeError(w, err)
			return
		}

		span.SetAttributes(
			attribute.String("request.keywords", req.Keywords),
			attribute.String("request.strategy", req.Strategy),
		)

		resp, err := s.Search.Search(ctx, search.Request{
			Query: types.Query{
				Keywords: req.Keywords,
				Location: req.Location,
				Filters: types.Filters{
					Recency:         req.Filters.Recency,
					ExperienceLevel: req.Filters.ExperienceLevel,
					Remote:          req.Filters.Remote,
					Skills:          req.Filters.Skills,
				},
			},
			Strategy: types.Strategy(req.Strategy),
			Params:   req.Params,
		})
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.code", errors.CodeOf(err)))
			s.writeError(w, err)
			return
		}

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("response.job_count", resp.JobCount),
		)
		writeJSON(w, http.StatusOK, SearchResultResponse{Status: "success", SearchResponse: resp})
	}
}

func (s *Server) listSourcesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"sources": s.Registry.InfoAll(),
	})
}

func (s *Server) getSourceHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.Registry.Info(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"source": info,
	})
}

func (s *Server) enableSourceHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.respondMutation(w, name, "enabled", s.Registry.Enable(name))
}

func (s *Server) disableSourceHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.respondMutation(w, name, "disabled", s.Registry.Disable(name))
}

func (s *Server) deleteSourceHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.respondMutation(w, name, "removed", s.Registry.Deregister(name))
}

func (s *Server) priorityHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req PriorityRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Priority == nil {
		s.writeError(w, invalidRequest("priority is required"))
		return
	}
	s.respondMutation(w, name, "priority updated", s.Registry.SetPriority(name, *req.Priority))
}

func (s *Server) weightHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req WeightRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Weight == nil {
		s.writeError(w, invalidRequest("weight is required"))
		return
	}
	s.respondMutation(w, name, "weight updated", s.Registry.SetWeight(name, *req.Weight))
}

func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req map[string]any
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	partial, ok := req["config"].(map[string]any)
	if !ok {
		s.writeError(w, invalidRequest("config must be a JSON object"))
		return
	}
	s.respondMutation(w, name, "config updated", s.Registry.UpdateConfig(name, partial))
}

func (s *Server) saveConfigHandler(w http.ResponseWriter, r *http.Request) {
	path, err := s.snapshotPath(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Registry.SaveConfig(path); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "success", Path: path, Message: "registry configuration saved"})
}

func (s *Server) loadConfigHandler(w http.ResponseWriter, r *http.Request) {
	path, err := s.snapshotPath(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Registry.LoadConfig(path); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "success", Path: path, Message: "registry configuration loaded"})
}

// snapshotPath reads the optional {"path"} body, falling back to the
// configured snapshot. A given path must be a relative .json name and is
// resolved inside the configured snapshot's directory.
func (s *Server) snapshotPath(r *http.Request) (string, error) {
	var req SnapshotRequest
	if r.ContentLength != 0 {
		if err := parseJSONRequest(r, &req); err != nil {
			return "", err
		}
	}

	var configured string
	if s.AppConfig != nil {
		configured = s.AppConfig.Registry.SnapshotPath
	}

	requested := strings.TrimSpace(req.Path)
	if requested == "" {
		if configured == "" {
			return "", invalidRequest("no snapshot path given or configured")
		}
		return configured, nil
	}
	if configured == "" {
		return "", invalidRequest("snapshot paths require registry.snapshotPath to be configured")
	}
	if !filepath.IsLocal(requested) || !strings.EqualFold(filepath.Ext(requested), ".json") {
		return "", invalidRequest(fmt.Sprintf("snapshot path %q must be a relative .json file inside the snapshot directory", requested))
	}
	return filepath.Join(filepath.Dir(configured), requested), nil
}

func (s *Server) respondMutation(w http.ResponseWriter, name, action string, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  "success",
		Name:    name,
		Message: fmt.Sprintf("job source '%s' %s", name, action),
	})
}

func invalidRequest(message string) error {
	return errors.NewValidationError(errors.ErrCodeInvalidRequest, message, nil)
}
