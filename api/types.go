package api

import (
	"context"
	"net/http"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/ruteri/snippet-provisioning-backend/provision"
)

// ProvisioningProvider is the caller-facing surface of a provisioning server.
// The HTTP client in api/provisioner implements it.
type ProvisioningProvider interface {
	// Provision resolves and provisions service with the given variables.
	Provision(ctx context.Context, service string, vars map[string]string) (*provision.Outcome, error)

	// Run executes service without baseline or presence handling and returns
	// the per-node answer.
	Run(ctx context.Context, service string, vars map[string]string) (*RunResponse, error)

	// Nodes lists the execution nodes known to the control plane.
	Nodes(ctx context.Context) ([]string, error)

	// Catalog lists catalog entries, optionally filtered by type.
	Catalog(ctx context.Context, typ interfaces.ServiceType) ([]interfaces.ServiceSummary, error)

	// Describe returns a definition with the form fields it asks for.
	Describe(ctx context.Context, service string) (*ServiceDescription, error)
}

// RunResponse is the answer to a query-style run.
type RunResponse struct {
	Outcome provision.Outcome          `json:"outcome"`
	Result  interfaces.ExecutionResult `json:"result,omitempty"`
}

// NodesResponse lists execution nodes. An empty list means the control plane
// manages none; failures are reported with an error status instead.
type NodesResponse struct {
	Nodes []string `json:"nodes"`
}

// CatalogResponse lists catalog entries ordered by label.
type CatalogResponse struct {
	Services []interfaces.ServiceSummary `json:"services"`
}

// ServiceDescription is a definition together with the input fields a caller
// has to fill in to provision it.
type ServiceDescription struct {
	Definition *interfaces.ServiceDefinition `json:"definition"`
	Fields     []FieldDescriptor             `json:"fields"`
}

// FieldKind is the input widget a field maps to.
type FieldKind string

const (
	FieldText FieldKind = "text"
)

// FieldDescriptor describes one input of a dynamically built form.
type FieldDescriptor struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Kind     FieldKind `json:"kind"`
	Initial  string    `json:"initial,omitempty"`
	Required bool      `json:"required"`
}

// FieldsFor maps variable declarations to form fields, preserving order.
// A variable without a default is required. Every type hint is treated as
// free text.
func FieldsFor(vars []interfaces.VariableSpec) []FieldDescriptor {
	fields := make([]FieldDescriptor, 0, len(vars))
	for _, v := range vars {
		label := v.Description
		if label == "" {
			label = v.Name
		}
		initial, hasDefault := v.DefaultValue()
		fields = append(fields, FieldDescriptor{
			Name:     v.Name,
			Label:    label,
			Kind:     FieldText,
			Initial:  initial,
			Required: !hasDefault,
		})
	}
	return fields
}

// StatusCodeFor maps an outcome to the HTTP status it is served with.
// Outcomes carrying a control-plane verdict are served with 200 since the
// request itself was carried out; the outcome body says what happened.
func StatusCodeFor(out provision.Outcome) int {
	if out.Succeeded() {
		return http.StatusOK
	}
	switch out.Kind {
	case provision.KindStepFailure, provision.KindNodeNotFound:
		return http.StatusOK
	case provision.KindServiceNotFound:
		return http.StatusNotFound
	case provision.KindMissingVariable, provision.KindInvalidPayload:
		return http.StatusUnprocessableEntity
	case provision.KindAuthFailure, provision.KindRemoteCall, provision.KindMalformedResponse:
		return http.StatusBadGateway
	case provision.KindTimeout:
		return http.StatusGatewayTimeout
	case provision.KindCatalogUnavailable, provision.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
