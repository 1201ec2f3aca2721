// Package fleet is the client of the fleet automation control plane, a
// salt-api compatible HTTP service that executes payloads on managed nodes.
//
// The control plane exposes three calls:
//
//	POST /login    {"username", "password", "eauth"} -> {"return": [{"token": "..."}]}
//	GET  /minions  X-Auth-Token                      -> {"return": [{"<node>": {...}}]}
//	POST /         X-Auth-Token, execution payload   -> {"return": [{"<node>": {"<step>": {"result": true, "comment": ""}}}]}
//
// A Client owns its AuthSession. The first call logs in, later calls reuse the
// token, and a token the control plane rejects with 401 is dropped and
// replaced by a fresh login before the call is repeated once.
//
// Every HTTP call is bounded by the configured timeout. Failures are reported
// as *RemoteCallError values whose Kind tells a timeout from a refused
// connection, an error status or an unreadable body, so "no nodes" is never
// confused with "could not ask".
//
// The endpoint may be given as srv+http://_salt-api._tcp.example.com, in which
// case the SRV record with the best priority is used.
package fleet
