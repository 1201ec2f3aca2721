// Package main (cmd/httpserver) runs the snippet provisioning server.
//
// The server loads service bundles from one or more catalog locations, renders
// them with caller-supplied variables, and pushes the result to a salt-api
// compatible control plane. Baselines a service extends are pushed first unless
// their presence probe reports them already configured.
//
// Configuration is handled through command-line flags, each with an
// environment variable fallback. The control plane password can be given
// literally or as an env://, file:// or vault:// reference.
//
// The server implements graceful shutdown on receiving termination signals
// (SIGINT/SIGTERM): it reports not ready for --drain-seconds, then waits for
// in-flight requests.
//
// Example usage:
//
//	provisioning-server --listen-addr=0.0.0.0:8080 \
//	    --catalog=file:///srv/catalog \
//	    --catalog=github://acme/network-catalog/services?ref=main \
//	    --fleet-url=srv+http://_salt-api._tcp.example.internal \
//	    --fleet-password=vault://secret/fleet/salt#password \
//	    --vault-addr=https://vault.example.internal:8200
package main
