package interfaces

import (
	"context"
	"math"
	"sort"
)

// FleetClient talks to the fleet-automation control plane.
type FleetClient interface {
	// Authenticate acquires a session token. It is a no-op when a token is already held.
	Authenticate(ctx context.Context) error

	// ListNodes returns the execution node ids known to the control plane.
	// An empty slice with a nil error means the control plane has no nodes.
	ListNodes(ctx context.Context) ([]string, error)

	// Submit posts a structured execution payload and returns the raw response.
	Submit(ctx context.Context, payload any) (*SubmitResponse, error)
}

// SubmitResponse is the raw HTTP answer to an execution request.
type SubmitResponse struct {
	StatusCode int
	Body       []byte
}

// StepResult is the normalized outcome of one execution step on one node.
type StepResult struct {
	Name string `json:"name"`

	// Succeeded is true only when the remote reported a literal boolean true.
	Succeeded bool   `json:"result"`
	Comment   string `json:"comment"`

	// RunNum is the remote's execution ordinal, or -1 when it reported none.
	RunNum int `json:"run_num"`
}

// NodeResult is everything one node reported for an execution.
type NodeResult struct {
	Steps map[string]StepResult `json:"steps,omitempty"`

	// Raw holds the node's value when it was not a step mapping,
	// e.g. "Minion did not return".
	Raw string `json:"raw,omitempty"`
}

// OrderedSteps returns the steps in execution order, ties broken by name.
// Steps without an ordinal come last.
func (n NodeResult) OrderedSteps() []StepResult {
	steps := make([]StepResult, 0, len(n.Steps))
	for _, s := range n.Steps {
		steps = append(steps, s)
	}
	order := func(s StepResult) int {
		if s.RunNum < 0 {
			return math.MaxInt
		}
		return s.RunNum
	}
	sort.Slice(steps, func(i, j int) bool {
		if oi, oj := order(steps[i]), order(steps[j]); oi != oj {
			return oi < oj
		}
		return steps[i].Name < steps[j].Name
	})
	return steps
}

// ExecutionResult maps execution node ids to their step results.
type ExecutionResult map[string]NodeResult

// Nodes returns the node ids in sorted order.
func (r ExecutionResult) Nodes() []string {
	nodes := make([]string, 0, len(r))
	for n := range r {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}
