// Package provisioner serves the provisioning core over HTTP and provides a
// matching client.
//
// # Key Components
//
//   - Handler: JSON endpoints for provisioning, query-style runs, node
//     listing and catalog browsing, registered on a chi router
//   - ProvisioningClient: api.ProvisioningProvider implementation used by
//     snippetctl and other callers
//
// # Provisioning Flow
//
// A POST to /api/provision/{service} carries a flat JSON object of variables:
//
//  1. The handler decodes the variables (an empty body means none)
//  2. The orchestrator resolves the service and its baseline
//  3. A missing baseline is pushed, then the service itself
//  4. The outcome is returned as JSON, status chosen by api.StatusCodeFor
//
// # Usage Example
//
//	client := &provisioner.ProvisioningClient{
//		ServerAddr: "http://provisioner-api:8080",
//	}
//
//	out, err := client.Provision(ctx, "vfw-basic", map[string]string{
//		"minion":   "node-a",
//		"hostname": "fw01",
//	})
//	if err != nil {
//		log.Fatalf("request failed: %v", err)
//	}
//	fmt.Println(out.Message)
package provisioner
