package interfaces

import "errors"

var (
	// ErrCatalogRead is returned when a bundle descriptor is missing, unreadable or malformed.
	// Catalog scans skip such bundles.
	ErrCatalogRead = errors.New("catalog read error")

	// ErrServiceNotFound is returned when a requested name is absent from the catalog.
	ErrServiceNotFound = errors.New("service not found")

	// ErrInvalidCatalog is returned for catalog layouts that cannot be provisioned,
	// such as a multi-hop or self-referencing extends chain.
	ErrInvalidCatalog = errors.New("invalid catalog configuration")

	// ErrMissingVariable is returned when a template references a variable absent from the context.
	ErrMissingVariable = errors.New("missing template variable")

	// ErrInvalidPayload is returned when a rendered template is not a structured document.
	ErrInvalidPayload = errors.New("rendered payload is not valid structured data")

	// ErrAuthFailure is returned when the automation control plane rejects or cannot be reached for login.
	ErrAuthFailure = errors.New("could not connect to automation system")

	// ErrRemoteCall is returned when a list or submit call fails at the transport or HTTP level.
	ErrRemoteCall = errors.New("remote call failed")

	// ErrMalformedRemoteResponse is returned when a response body does not have the expected shape.
	ErrMalformedRemoteResponse = errors.New("malformed response from automation system")

	// ErrPartialStepFailure is returned when the remote executed but reported a failed step.
	ErrPartialStepFailure = errors.New("not all steps completed successfully")
)
