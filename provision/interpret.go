package provision

import (
	"fmt"

	"github.com/ruteri/snippet-provisioning-backend/fleet"
	"github.com/ruteri/snippet-provisioning-backend/interfaces"
)

// Interpret turns an execution answer into an outcome for node. An empty node
// accepts the answer's only node, if there is exactly one. Pushes always name
// their node; the lenient pick serves ad-hoc executions.
//
// The first step, in execution order, that did not report a literal true fails
// the outcome with FailurePrefix followed by that step's comment.
func Interpret(body []byte, node string) Outcome {
	result, err := fleet.ParseExecutionResult(body)
	if err != nil {
		return failure(KindMalformedResponse, malformedMsg)
	}
	return interpretResult(result, node)
}

func interpretResult(result interfaces.ExecutionResult, node string) Outcome {
	nodeResult, node, ok := selectNode(result, node)
	if !ok {
		if node == "" {
			return failure(KindNodeNotFound, noNodeAtAllMsg)
		}
		return failure(KindNodeNotFound, fmt.Sprintf(noNodeFormat, node))
	}

	if len(nodeResult.Steps) == 0 && nodeResult.Raw != "" {
		out := failure(KindStepFailure, FailurePrefix+nodeResult.Raw)
		out.Node = node
		return out
	}

	for _, step := range nodeResult.OrderedSteps() {
		if !step.Succeeded {
			out := failure(KindStepFailure, FailurePrefix+step.Comment)
			out.Node = node
			return out
		}
	}

	return success(node, fmt.Sprintf(successFormat, node))
}

// present reports whether a probe answer shows every probe step succeeding on node.
func present(body []byte, node string) (bool, error) {
	result, err := fleet.ParseExecutionResult(body)
	if err != nil {
		return false, err
	}

	nodeResult, _, ok := selectNode(result, node)
	if !ok || len(nodeResult.Steps) == 0 {
		return false, nil
	}
	for _, step := range nodeResult.Steps {
		if !step.Succeeded {
			return false, nil
		}
	}
	return true, nil
}

func selectNode(result interfaces.ExecutionResult, node string) (interfaces.NodeResult, string, bool) {
	if node == "" {
		if len(result) != 1 {
			return interfaces.NodeResult{}, "", false
		}
		node = result.Nodes()[0]
	}
	nodeResult, ok := result[node]
	return nodeResult, node, ok
}
