package fleet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
)

// ParseExecutionResult normalizes an execution answer into per-node step results.
//
// The control plane is not consistent about shapes. "return" may be a list of
// node mappings or a single mapping; a node's value is usually a mapping of
// state ids to step results but can be a bare string such as
// "Minion did not return"; a step's result may be a boolean, null or a string.
// Only a literal boolean true marks a step as succeeded.
//
// A body that is not JSON, or has no "return" key, fails with
// interfaces.ErrMalformedRemoteResponse.
func ParseExecutionResult(body []byte) (interfaces.ExecutionResult, error) {
	var envelope struct {
		Return json.RawMessage `json:"return"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrMalformedRemoteResponse, err)
	}
	if len(envelope.Return) == 0 || bytes.Equal(envelope.Return, []byte("null")) {
		return nil, fmt.Errorf("%w: missing return key", interfaces.ErrMalformedRemoteResponse)
	}

	var entries []json.RawMessage
	switch firstByte(envelope.Return) {
	case '[':
		if err := json.Unmarshal(envelope.Return, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrMalformedRemoteResponse, err)
		}
	case '{':
		entries = []json.RawMessage{envelope.Return}
	default:
		return nil, fmt.Errorf("%w: return is neither a list nor a mapping", interfaces.ErrMalformedRemoteResponse)
	}

	result := interfaces.ExecutionResult{}
	for _, entry := range entries {
		if firstByte(entry) != '{' {
			// job ids and plain messages carry no per-node data
			continue
		}

		var nodes map[string]json.RawMessage
		if err := json.Unmarshal(entry, &nodes); err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrMalformedRemoteResponse, err)
		}
		for node, value := range nodes {
			result[node] = parseNodeResult(value)
		}
	}
	return result, nil
}

func parseNodeResult(value json.RawMessage) interfaces.NodeResult {
	if firstByte(value) != '{' {
		return interfaces.NodeResult{Raw: scalarText(value)}
	}

	var steps map[string]json.RawMessage
	if err := json.Unmarshal(value, &steps); err != nil {
		return interfaces.NodeResult{Raw: string(value)}
	}

	out := interfaces.NodeResult{Steps: make(map[string]interfaces.StepResult, len(steps))}
	for name, raw := range steps {
		out.Steps[name] = parseStep(name, raw)
	}
	return out
}

func parseStep(name string, raw json.RawMessage) interfaces.StepResult {
	step := interfaces.StepResult{Name: name, RunNum: -1}
	if firstByte(raw) != '{' {
		step.Comment = scalarText(raw)
		return step
	}

	var fields struct {
		Result  json.RawMessage `json:"result"`
		Comment json.RawMessage `json:"comment"`
		RunNum  *float64        `json:"__run_num__"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		step.Comment = string(raw)
		return step
	}

	step.Succeeded = bytes.Equal(bytes.TrimSpace(fields.Result), []byte("true"))
	step.Comment = commentText(fields.Comment)
	if fields.RunNum != nil {
		step.RunNum = int(*fields.RunNum)
	}
	return step
}

// commentText flattens a comment that may be a string, a list of strings or anything else.
func commentText(raw json.RawMessage) string {
	switch firstByte(raw) {
	case 0:
		return ""
	case '[':
		var lines []any
		if err := json.Unmarshal(raw, &lines); err == nil {
			parts := make([]string, 0, len(lines))
			for _, l := range lines {
				parts = append(parts, fmt.Sprint(l))
			}
			return strings.Join(parts, "\n")
		}
	}
	return scalarText(raw)
}

// scalarText returns a JSON string's content, or the raw JSON of any other value.
func scalarText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ""
	}
	return string(bytes.TrimSpace(raw))
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
