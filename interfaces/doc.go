// Package interfaces defines core interfaces and types for the snippet
// provisioning system, separating interface definitions from implementations.
//
// # Catalog Types
//
// ServiceDefinition is the unit of provisioning: a named bundle declaring its
// variables (VariableSpec), its template files (TemplateFile), an optional
// baseline it extends, and opaque labels consumed by provisioning policies.
//
// VariableContext is the per-request mapping of variable names to values used
// to render a bundle.
//
// # Storage Interfaces
//
// CatalogStore: Provides access to a tree of bundles across multiple backend
// types (file, S3, GitHub).
//
// StorageBackendFactory: Creates catalog stores from URI strings and manages
// multi-backend configurations for redundant catalogs.
//
// # Fleet Interfaces
//
// FleetClient: Authenticates to the fleet-automation control plane, lists
// execution nodes and submits rendered payloads. ExecutionResult is the
// normalized per-node, per-step view of a submission response.
//
// # Errors
//
// The package declares the sentinel errors shared by all components. Concrete
// error types in other packages wrap them so callers can use errors.Is.
package interfaces
