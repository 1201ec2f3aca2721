package fleet

import (
	"testing"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExecutionResult(t *testing.T) {
	body := []byte(`{"return": [{
		"node-a": {
			"pkg_|-vfw_|-vfw_|-installed": {"result": true, "comment": "installed", "__run_num__": 1},
			"file_|-conf_|-/etc/vfw.conf_|-managed": {"result": false, "comment": "disk full", "__run_num__": 0},
			"cmd_|-reload_|-reload_|-run": {"result": null, "comment": ["requisite failed", "skipped"], "__run_num__": 2},
			"service_|-vfw_|-vfw_|-running": {"result": "True", "comment": 42}
		},
		"node-b": "Minion did not return. [No response]"
	}]}`)

	result, err := ParseExecutionResult(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"node-a", "node-b"}, result.Nodes())

	steps := result["node-a"].OrderedSteps()
	require.Len(t, steps, 4)

	assert.Equal(t, "file_|-conf_|-/etc/vfw.conf_|-managed", steps[0].Name)
	assert.False(t, steps[0].Succeeded)
	assert.Equal(t, "disk full", steps[0].Comment)

	assert.True(t, steps[1].Succeeded)
	assert.Equal(t, 1, steps[1].RunNum)

	assert.False(t, steps[2].Succeeded)
	assert.Equal(t, "requisite failed\nskipped", steps[2].Comment)

	// a string "True" is not a boolean
	assert.Equal(t, "service_|-vfw_|-vfw_|-running", steps[3].Name)
	assert.False(t, steps[3].Succeeded)
	assert.Equal(t, "42", steps[3].Comment)

	assert.Empty(t, result["node-b"].Steps)
	assert.Equal(t, "Minion did not return. [No response]", result["node-b"].Raw)
}

func TestParseExecutionResult_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		nodes []string
	}{
		{"single mapping", `{"return": {"node-a": {"s": {"result": true}}}}`, []string{"node-a"}},
		{"several entries", `{"return": [{"node-a": {}}, {"node-b": true}]}`, []string{"node-a", "node-b"}},
		{"job id entries skipped", `{"return": ["20240101120000", {"node-a": {}}]}`, []string{"node-a"}},
		{"empty", `{"return": [{}]}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseExecutionResult([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.nodes, result.Nodes())
		})
	}
}

func TestParseExecutionResult_StepNotAMapping(t *testing.T) {
	result, err := ParseExecutionResult([]byte(`{"return": [{"node-a": {"cmd": "permission denied"}}]}`))
	require.NoError(t, err)

	step := result["node-a"].Steps["cmd"]
	assert.False(t, step.Succeeded)
	assert.Equal(t, "permission denied", step.Comment)
}

func TestParseExecutionResult_Malformed(t *testing.T) {
	for _, body := range []string{
		``,
		`not json`,
		`<html><body>502 Bad Gateway</body></html>`,
		`{"status": "done"}`,
		`{"return": null}`,
		`{"return": "Internal error"}`,
		`[1, 2, 3]`,
	} {
		_, err := ParseExecutionResult([]byte(body))
		assert.ErrorIs(t, err, interfaces.ErrMalformedRemoteResponse, "body %q", body)
	}
}
