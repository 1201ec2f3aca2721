package provisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ruteri/snippet-provisioning-backend/api"
	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/ruteri/snippet-provisioning-backend/provision"
)

// ProvisioningClient implements api.ProvisioningProvider against a remote provisioning server.
type ProvisioningClient struct {
	// ServerAddr is the base URL of the provisioning server
	ServerAddr string

	// HTTPClient is used for requests; http.DefaultClient when nil.
	HTTPClient *http.Client
}

var _ api.ProvisioningProvider = (*ProvisioningClient)(nil)

// Provision asks the server to provision service. A failed outcome is returned
// with a nil error whenever the server answered with an outcome body.
func (p *ProvisioningClient) Provision(ctx context.Context, service string, vars map[string]string) (*provision.Outcome, error) {
	var out provision.Outcome
	if err := p.post(ctx, "/api/provision/"+url.PathEscape(service), vars, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Run executes service once on the server and returns the per-node answer.
func (p *ProvisioningClient) Run(ctx context.Context, service string, vars map[string]string) (*api.RunResponse, error) {
	var out api.RunResponse
	if err := p.post(ctx, "/api/run/"+url.PathEscape(service), vars, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *ProvisioningClient) Nodes(ctx context.Context) ([]string, error) {
	var out api.NodesResponse
	if err := p.get(ctx, "/api/nodes", &out); err != nil {
		return nil, err
	}
	return out.Nodes, nil
}

func (p *ProvisioningClient) Catalog(ctx context.Context, typ interfaces.ServiceType) ([]interfaces.ServiceSummary, error) {
	path := "/api/catalog"
	if typ != "" {
		path += "?type=" + url.QueryEscape(string(typ))
	}
	var out api.CatalogResponse
	if err := p.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Services, nil
}

func (p *ProvisioningClient) Describe(ctx context.Context, service string) (*api.ServiceDescription, error) {
	var out api.ServiceDescription
	if err := p.get(ctx, "/api/catalog/"+url.PathEscape(service), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *ProvisioningClient) post(ctx context.Context, path string, vars map[string]string, out any) error {
	if vars == nil {
		vars = map[string]string{}
	}
	body, err := json.Marshal(vars)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.ServerAddr+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, out)
}

func (p *ProvisioningClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ServerAddr+path, nil)
	if err != nil {
		return err
	}
	return p.do(req, out)
}

// do decodes JSON answers regardless of status. Other answers with a non-200
// status become errors carrying the body.
func (p *ProvisioningClient) do(req *http.Request, out any) error {
	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s returned %d, body unreadable: %w", req.URL.Path, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK && resp.Header.Get("Content-Type") != "application/json" {
		return fmt.Errorf("%s returned error %d: %s", req.URL.Path, resp.StatusCode, bytes.TrimSpace(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("could not parse %s response: %w", req.URL.Path, err)
	}
	return nil
}
