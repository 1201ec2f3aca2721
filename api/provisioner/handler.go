package provisioner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/snippet-provisioning-backend/api"
	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/ruteri/snippet-provisioning-backend/provision"
)

const (
	// maxBodySize is the maximum allowed request body size (1MB).
	maxBodySize = 1024 * 1024
)

// Orchestrator is the provisioning core the handler fronts.
type Orchestrator interface {
	ResolveAndProvision(ctx context.Context, name string, vars map[string]string) provision.Outcome
	Execute(ctx context.Context, name string, vars map[string]string) (interfaces.ExecutionResult, provision.Outcome)
	ListExecutionNodes(ctx context.Context) ([]string, error)
	ListCatalog(ctx context.Context, typ interfaces.ServiceType) ([]interfaces.ServiceSummary, error)
	Describe(ctx context.Context, name string) (*interfaces.ServiceDefinition, bool, error)
}

// Handler serves the JSON provisioning API.
type Handler struct {
	orchestrator Orchestrator
	log          *slog.Logger
}

// NewHandler creates a handler over orchestrator.
func NewHandler(orchestrator Orchestrator, log *slog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		log:          log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/provision/{service}", h.HandleProvision)
	r.Post("/api/run/{service}", h.HandleRun)
	r.Get("/api/nodes", h.HandleNodes)
	r.Get("/api/catalog", h.HandleCatalog)
	r.Get("/api/catalog/{service}", h.HandleDescribe)
}

// HandleProvision provisions a service, pushing its baseline first if needed.
//
// URL format: POST /api/provision/{service}
//
// Request body: JSON object mapping variable names to string values. An empty
// body is treated as no variables.
//
// Response: JSON, see provision.Outcome. The status code follows api.StatusCodeFor.
func (h *Handler) HandleProvision(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	vars, err := readVariables(w, r)
	if err != nil {
		h.log.Warn("Invalid provisioning request", "err", err, "service", service)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out := h.orchestrator.ResolveAndProvision(r.Context(), service, vars)
	h.writeJSON(w, api.StatusCodeFor(out), out)
}

// HandleRun executes a service once, without baseline or presence handling,
// and returns the parsed per-node answer.
//
// URL format: POST /api/run/{service}
//
// Response: JSON, see api.RunResponse
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	vars, err := readVariables(w, r)
	if err != nil {
		h.log.Warn("Invalid run request", "err", err, "service", service)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, out := h.orchestrator.Execute(r.Context(), service, vars)
	h.writeJSON(w, api.StatusCodeFor(out), api.RunResponse{Outcome: out, Result: result})
}

// HandleNodes lists the execution nodes managed by the control plane.
//
// URL format: GET /api/nodes
//
// Response: JSON, see api.NodesResponse. A control-plane failure is a 502,
// never an empty list.
func (h *Handler) HandleNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.orchestrator.ListExecutionNodes(r.Context())
	if err != nil {
		h.log.Error("Failed to list execution nodes", "err", err)
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		http.Error(w, fmt.Errorf("failed to list nodes: %w", err).Error(), status)
		return
	}
	if nodes == nil {
		nodes = []string{}
	}
	h.writeJSON(w, http.StatusOK, api.NodesResponse{Nodes: nodes})
}

// HandleCatalog lists catalog entries ordered by label.
//
// URL format: GET /api/catalog?type={service|baseline|template}
//
// Response: JSON, see api.CatalogResponse
func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	typ := interfaces.ServiceType(r.URL.Query().Get("type"))
	services, err := h.orchestrator.ListCatalog(r.Context(), typ)
	if err != nil {
		h.log.Error("Failed to list catalog", "err", err, "type", typ)
		http.Error(w, fmt.Errorf("failed to list catalog: %w", err).Error(), http.StatusServiceUnavailable)
		return
	}
	if services == nil {
		services = []interfaces.ServiceSummary{}
	}
	h.writeJSON(w, http.StatusOK, api.CatalogResponse{Services: services})
}

// HandleDescribe returns a definition and the form fields it asks for.
//
// URL format: GET /api/catalog/{service}
//
// Response: JSON, see api.ServiceDescription
func (h *Handler) HandleDescribe(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	def, ok, err := h.orchestrator.Describe(r.Context(), service)
	if err != nil {
		h.log.Error("Failed to load catalog", "err", err, "service", service)
		http.Error(w, fmt.Errorf("failed to load catalog: %w", err).Error(), http.StatusServiceUnavailable)
		return
	}
	if !ok {
		http.Error(w, fmt.Sprintf("%s: %s", interfaces.ErrServiceNotFound, service), http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, api.ServiceDescription{
		Definition: def,
		Fields:     api.FieldsFor(def.Variables),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

// readVariables decodes the request body as a flat string map.
func readVariables(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	vars := map[string]string{}
	if len(body) == 0 {
		return vars, nil
	}
	if err := json.Unmarshal(body, &vars); err != nil {
		return nil, fmt.Errorf("request body must be a JSON object of string values: %w", err)
	}
	return vars, nil
}
