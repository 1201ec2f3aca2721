// Package storage provides catalog stores with pluggable backends.
//
// A catalog is a tree of snippet bundles: every immediate child directory of
// the catalog root is one bundle holding a metadata descriptor and the
// template files it references. The storage package offers a unified
// interface for listing bundles and reading their files across:
//
//   - File system storage for local catalogs and development
//   - S3-compatible storage for shared catalogs
//   - GitHub repositories (read-only) for catalogs kept under version control
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///opt/snippets
//   - s3://bucket-name/prefix/?region=us-west-2&endpoint=minio.local:9000
//   - github://owner/repo/path/to/snippets?ref=main&token_env=GITHUB_TOKEN
//
// # Redundancy
//
// MultiStorageBackend aggregates several backends. Bundle listings are the
// union of all available backends, reads fall back to the next backend when a
// file is missing or a backend is down, and writes go to every backend that
// accepts them.
//
// # Path Safety
//
// Bundle names must be a single path element and file references must stay
// inside their bundle; anything else is rejected before touching a backend.
package storage
