/*
Package api holds the HTTP-facing types of the snippet provisioning backend.

The JSON endpoints are served by the provisioner subpackage:

	POST /api/provision/{service}   body: {"var": "value", ...}  -> provision.Outcome
	POST /api/run/{service}         body: {"var": "value", ...}  -> RunResponse
	GET  /api/nodes                                              -> NodesResponse
	GET  /api/catalog?type=service                               -> CatalogResponse
	GET  /api/catalog/{service}                                  -> ServiceDescription

Failed outcomes are still returned as JSON. StatusCodeFor decides the HTTP
status: caller mistakes map to 4xx, control-plane trouble to 502/504, and a
verdict from the control plane (including a failed step) to 200.

FieldsFor turns a service's variable declarations into an abstract list of
form fields. Rendering those fields is left to whatever front end consumes
the API.
*/
package api
