// Package catalog discovers and indexes the service bundles of a catalog store.
//
// A bundle is a directory holding a metadata.yaml descriptor and the template
// files it lists:
//
//	vfw-gold/
//	  metadata.yaml
//	  deploy.json
//
//	name: vfw-gold
//	label: Gold Firewall
//	type: service
//	extends: vfw-baseline
//	labels:
//	  presence_check: vfw-probe
//	variables:
//	  - name: hostname
//	    description: Hostname
//	    default: fw01
//	    type_hint: text
//	snippets:
//	  - name: deploy
//	    file: deploy.json
//
// The catalog holds no state of its own. Every lookup re-reads the store, and
// a bundle whose descriptor cannot be read or parsed is logged and left out of
// the result rather than failing the scan.
//
// A definition may extend exactly one baseline. Baselines extending further
// bundles are rejected by ResolveBaseline.
package catalog
