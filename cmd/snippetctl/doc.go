// Package main (cmd/snippetctl) is the command-line companion of the
// provisioning server.
//
// Local commands work directly against a catalog location:
//
//	snippetctl list --type service --catalog file://./catalog
//	snippetctl show vfw-basic
//	snippetctl render vfw-basic -v minion=node-a -v hostname=fw01
//	snippetctl init-metadata new-bundle --write
//
// Remote commands talk to a running server:
//
//	snippetctl provision vfw-basic -v minion=node-a -v hostname=fw01 --server http://provisioner-api:8080
//	snippetctl run list-vms -v minion=node-a
//	snippetctl nodes
package main
