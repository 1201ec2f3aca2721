package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruteri/snippet-provisioning-backend/fleet"
	"github.com/ruteri/snippet-provisioning-backend/interfaces"
)

// Status is the overall result of a provisioning request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// FailureKind classifies failed outcomes so callers can tell user errors
// from control plane trouble.
type FailureKind string

const (
	KindServiceNotFound    FailureKind = "service_not_found"
	KindInvalidCatalog     FailureKind = "invalid_catalog"
	KindCatalogUnavailable FailureKind = "catalog_unavailable"
	KindMissingVariable    FailureKind = "missing_variable"
	KindInvalidPayload     FailureKind = "invalid_payload"
	KindAuthFailure        FailureKind = "auth_failure"
	KindRemoteCall         FailureKind = "remote_call"
	KindTimeout            FailureKind = "timeout"
	KindMalformedResponse  FailureKind = "malformed_response"
	KindStepFailure        FailureKind = "step_failure"
	KindNodeNotFound       FailureKind = "node_not_found"
	KindCanceled           FailureKind = "canceled"
)

// Stage names the push an outcome refers to.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageBaseline Stage = "baseline"
	StageTarget   Stage = "target"
)

const (
	// FailurePrefix starts the message of an outcome whose steps did not all succeed.
	FailurePrefix = "Error deploying service! Not all steps completed successfully!\n\n"

	successFormat  = "Service deployed successfully on node: %s"
	presentFormat  = "Service already present on node: %s"
	malformedMsg   = "Error deploying service! Could not parse response from automation system"
	noNodeFormat   = "Error deploying service! No result returned for node: %s"
	noNodeAtAllMsg = "Error deploying service! No compute node found in response"
	noNodeNamed    = "Error deploying service! No compute node found: variable %s is not set"
)

// Outcome is the structured answer to a provisioning request. Every failure
// past catalog lookup is reported through it, never as a panic or bare error.
type Outcome struct {
	Status    Status      `json:"outcome"`
	Kind      FailureKind `json:"kind,omitempty"`
	Message   string      `json:"message"`
	Service   string      `json:"service"`
	Stage     Stage       `json:"stage,omitempty"`
	Node      string      `json:"node,omitempty"`
	RequestID string      `json:"request_id,omitempty"`

	// BaselinePushed is set when the request had to push the baseline first.
	BaselinePushed bool `json:"baseline_pushed,omitempty"`
}

// Succeeded reports whether the outcome is a success.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

func success(node, message string) Outcome {
	return Outcome{Status: StatusSuccess, Node: node, Message: message}
}

func failure(kind FailureKind, message string) Outcome {
	return Outcome{Status: StatusFailure, Kind: kind, Message: message}
}

// failureFromError maps the error taxonomy onto an outcome.
func failureFromError(err error) Outcome {
	switch {
	case errors.Is(err, context.Canceled):
		return failure(KindCanceled, err.Error())
	case errors.Is(err, interfaces.ErrServiceNotFound):
		return failure(KindServiceNotFound, err.Error())
	case errors.Is(err, interfaces.ErrInvalidCatalog):
		return failure(KindInvalidCatalog, err.Error())
	case errors.Is(err, interfaces.ErrMissingVariable):
		return failure(KindMissingVariable, err.Error())
	case errors.Is(err, interfaces.ErrInvalidPayload):
		return failure(KindInvalidPayload, err.Error())
	case errors.Is(err, interfaces.ErrAuthFailure):
		return failure(KindAuthFailure, interfaces.ErrAuthFailure.Error())
	case errors.Is(err, interfaces.ErrMalformedRemoteResponse):
		return failure(KindMalformedResponse, malformedMsg)
	case fleet.KindOf(err) == fleet.KindTimeout || errors.Is(err, context.DeadlineExceeded):
		return failure(KindTimeout, fmt.Sprintf("timed out waiting for automation system: %v", err))
	case errors.Is(err, interfaces.ErrRemoteCall):
		return failure(KindRemoteCall, err.Error())
	case errors.Is(err, interfaces.ErrContentNotFound), errors.Is(err, interfaces.ErrBackendUnavailable):
		return failure(KindCatalogUnavailable, err.Error())
	}
	return failure(KindCatalogUnavailable, err.Error())
}
