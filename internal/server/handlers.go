package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"phdash/internal/core"
	"phdash/internal/projection"
	"phdash/internal/store"
)

// DistanceMetricKey is the entry /config adds to the base configuration.
const DistanceMetricKey = "Distance Metric"

// HealthResponse is the body of /health
type HealthResponse struct {
	Status string `json:"status"`
}

// MatrixResponse is the body of /distance_matrix/{metric}
type MatrixResponse struct {
	Matrix [][]float64 `json:"matrix"`
}

// ProjectionResponse is the body of the projection endpoints
type ProjectionResponse struct {
	Projection [][]float64 `json:"projection"`
	Labels     []int       `json:"labels"`
}

// ErrorResponse is returned, with status 200, when a file is missing or unreadable
type ErrorResponse struct {
	Error string `json:"error"`
}

// ClusterCounts maps a stage key to label -> count, labels in first-seen order.
type ClusterCounts = orderedmap.OrderedMap[string, *orderedmap.OrderedMap[int, int]]

func emptyObject() map[string]any { return map[string]any{} }

// handleRoot answers liveness checks
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, "ok")
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleConfig merges the base dashboard config with the available metrics
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.LoadBaseConfig()
	if err != nil {
		s.logFailure(r, "load base config", err)
		cfg = emptyObject()
	}

	metrics := []string{}
	ph, err := s.store.LoadPHData()
	if err != nil {
		s.logFailure(r, "load ph data", err)
	} else {
		metrics = core.Metrics(ph)
	}
	cfg[DistanceMetricKey] = metrics

	s.respondJSON(w, r, http.StatusOK, cfg)
}

// handleManifest returns the manifest of the last generation run
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.LoadManifest()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, m)
}

// handleData returns the full cluster evolution of one metric
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.evolution(r)
	if !ok {
		s.respondJSON(w, r, http.StatusOK, emptyObject())
		return
	}
	s.respondJSON(w, r, http.StatusOK, ev)
}

// handleClusterData returns label frequencies per stage of one metric
func (s *Server) handleClusterData(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.evolution(r)
	if !ok {
		s.respondJSON(w, r, http.StatusOK, emptyObject())
		return
	}
	s.respondJSON(w, r, http.StatusOK, CountClusters(ev))
}

// handleDistanceMatrix returns the stored distance matrix of one metric
func (s *Server) handleDistanceMatrix(w http.ResponseWriter, r *http.Request) {
	metric := chi.URLParam(r, "metric")
	m, err := s.store.LoadDistanceMatrix(metric)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, r, http.StatusOK, MatrixResponse{Matrix: projection.Rows(m)})
}

// handleProjection returns a stored projection with the point labels
func (s *Server) handleProjection(kind core.ProjectionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := s.store.LoadProjection(kind)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		pc, err := s.store.LoadPointCloud()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		s.respondJSON(w, r, http.StatusOK, ProjectionResponse{
			Projection: projection.Rows(m),
			Labels:     pc.TrueLabels,
		})
	}
}

// evolution loads the Evolution named by the metric URL parameter.
func (s *Server) evolution(r *http.Request) (*core.Evolution, bool) {
	ph, err := s.store.LoadPHData()
	if err != nil {
		s.logFailure(r, "load ph data", err)
		return nil, false
	}
	return ph.Get(chi.URLParam(r, "metric"))
}

// CountClusters counts label occurrences in every stage of ev.
func CountClusters(ev *core.Evolution) *ClusterCounts {
	out := orderedmap.New[string, *orderedmap.OrderedMap[int, int]]()
	for pair := ev.Oldest(); pair != nil; pair = pair.Next() {
		counts := orderedmap.New[int, int]()
		for _, label := range pair.Value {
			n, _ := counts.Get(label)
			counts.Set(label, n+1)
		}
		out.Set(pair.Key, counts)
	}
	return out
}

// respondJSON writes data as JSON. Encoding happens before the header is
// written so that an unencodable value still yields an error body.
func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		s.logFailure(r, "encode response", err)
		body, _ = json.Marshal(ErrorResponse{Error: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// respondError reports a service failure in the body with a 200 status.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.logFailure(r, "serve snapshot file", err)
	s.respondJSON(w, r, http.StatusOK, ErrorResponse{Error: err.Error()})
}

func (s *Server) logFailure(r *http.Request, action string, err error) {
	l := hlog.FromRequest(r)
	ev := l.Warn()
	if !errors.Is(err, store.ErrNotFound) {
		ev = l.Error()
	}
	ev.Err(err).Str("action", action).Msg("request failed")
}
