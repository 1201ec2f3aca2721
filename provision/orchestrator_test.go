package provision

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/snippet-provisioning-backend/catalog"
	"github.com/ruteri/snippet-provisioning-backend/fleet"
	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/ruteri/snippet-provisioning-backend/render"
	"github.com/ruteri/snippet-provisioning-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	okNodeA     = `{"return": [{"node-a": {"state_|-a": {"result": true, "comment": "", "__run_num__": 0}}}]}`
	diskFullA   = `{"return":[{"node-a":{"step1":{"result":true,"comment":""},"step2":{"result":false,"comment":"disk full"}}}]}`
	absentProbe = `{"return": [{"node-a": {"cmd_|-check": {"result": false, "comment": "not configured"}}}]}`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func testCatalogFiles() map[string]string {
	return map[string]string{
		"baseline-x/metadata.yaml": `
name: baseline-x
label: Baseline X
type: baseline
labels:
  presence_check: baseline-x-probe
variables:
  - name: region
    default: us
snippets:
  - name: base
    file: base.json
`,
		"baseline-x/base.json": `{"client": "local", "tgt": "{{ .minion | default "*" }}", "fun": "state.apply", "arg": ["baseline"], "kwarg": {"pillar": {"region": "{{ .region }}"}}}`,

		"baseline-x-probe/metadata.yaml": "name: baseline-x-probe\ntype: template\nsnippets:\n  - name: probe\n    file: probe.yaml\n",
		"baseline-x-probe/probe.yaml":    "client: local\ntgt: '{{ .minion | default \"*\" }}'\nfun: state.apply\narg: [probe]\n",

		"service-y/metadata.yaml": `
name: service-y
label: Service Y
type: service
extends: baseline-x
variables:
  - name: sku
    default: std
snippets:
  - name: deploy
    file: deploy.json
`,
		"service-y/deploy.json": `{"client": "local", "tgt": "{{ .minion | default "*" }}", "fun": "state.apply", "arg": ["service-y"], "kwarg": {"pillar": {"sku": "{{ .sku }}", "region": "{{ .region }}"}}}`,

		"needs-host/metadata.yaml": "name: needs-host\nlabel: Alpha Host\ntype: service\nsnippets:\n  - name: deploy\n    file: deploy.json\n",
		"needs-host/deploy.json":   `{"fun": "state.apply", "arg": ["needs-host"], "kwarg": {"hostname": "{{ .hostname }}"}}`,

		"chained/metadata.yaml": "name: chained\ntype: service\nextends: service-y\n",
	}
}

func newTestOrchestrator(t *testing.T, opts Options) (*Orchestrator, *fleet.MockFleetClient) {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, testCatalogFiles())

	store, err := storage.NewFileBackend(root, discardLogger())
	require.NoError(t, err)
	cat := catalog.NewCatalog(store, discardLogger())
	renderer := render.NewRenderer(cat, discardLogger())
	fleetClient := &fleet.MockFleetClient{}

	return NewOrchestrator(cat, renderer, fleetClient, opts, discardLogger()), fleetClient
}

// payloadArg matches submitted payloads by their first "arg" entry.
func payloadArg(name string) any {
	return mock.MatchedBy(func(p json.RawMessage) bool {
		var decoded struct {
			Arg []string `json:"arg"`
		}
		if err := json.Unmarshal(p, &decoded); err != nil || len(decoded.Arg) == 0 {
			return false
		}
		return decoded.Arg[0] == name
	})
}

func respond(body string) *interfaces.SubmitResponse {
	return &interfaces.SubmitResponse{StatusCode: 200, Body: []byte(body)}
}

func TestResolve_EndToEndContext(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{})

	res, err := o.Resolve(context.Background(), "service-y", map[string]string{"sku": "pro"})
	require.NoError(t, err)
	assert.Equal(t, "baseline-x", res.Baseline.Name)
	assert.Equal(t, interfaces.VariableContext{"region": "us", "sku": "pro"}, res.Vars)
}

func TestResolve_CallerValuesWin(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{})

	res, err := o.Resolve(context.Background(), "service-y", map[string]string{"region": "eu"})
	require.NoError(t, err)
	assert.Equal(t, interfaces.VariableContext{"region": "eu", "sku": "std"}, res.Vars)
}

func TestResolveAndProvision_PushesMissingBaselineThenTarget(t *testing.T) {
	o, fc := newTestOrchestrator(t, Options{})
	ctx := context.Background()

	var targetPayload json.RawMessage
	fc.On("Submit", ctx, payloadArg("probe")).Return(respond(absentProbe), nil).Once()
	fc.On("Submit", ctx, payloadArg("baseline")).Return(respond(okNodeA), nil).Once()
	fc.On("Submit", ctx, payloadArg("service-y")).Return(respond(okNodeA), nil).Once().
		Run(func(args mock.Arguments) { targetPayload = args.Get(1).(json.RawMessage) })

	out := o.ResolveAndProvision(ctx, "service-y", map[string]string{"sku": "pro", "minion": "node-a"})

	require.True(t, out.Succeeded(), out.Message)
	assert.Equal(t, "Service deployed successfully on node: node-a", out.Message)
	assert.Equal(t, "node-a", out.Node)
	assert.Equal(t, "service-y", out.Service)
	assert.Equal(t, StageTarget, out.Stage)
	assert.True(t, out.BaselinePushed)
	assert.NotEmpty(t, out.RequestID)
	assert.JSONEq(t, `{"client":"local","tgt":"node-a","fun":"state.apply","arg":["service-y"],"kwarg":{"pillar":{"sku":"pro","region":"us"}}}`, string(targetPayload))
	fc.AssertExpectations(t)
}

func TestResolveAndProvision_SkipsPresentBaseline(t *testing.T) {
	o, fc := newTestOrchestrator(t, Options{})
	ctx := context.Background()

	fc.On("Submit", ctx, payloadArg("probe")).Return(respond(okNodeA), nil).Once()
	fc.On("Submit", ctx, payloadArg("service-y")).Return(respond(okNodeA), nil).Once()

	out := o.ResolveAndProvision(ctx, "service-y", map[string]string{"minion": "node-a"})

	require.True(t, out.Succeeded(), out.Message)
	assert.False(t, out.BaselinePushed)
	fc.AssertExpectations(t)
	fc.AssertNotCalled(t, "Submit", ctx, payloadArg("baseline"))
}

func TestResolveAndProvision_BaselineFailureStopsTarget(t *testing.T) {
	o, fc := newTestOrchestrator(t, Options{})
	ctx := context.Background()

	fc.On("Submit", ctx, payloadArg("probe")).Return(respond(absentProbe), nil).Once()
	fc.On("Submit", ctx, payloadArg("baseline")).Return(respond(diskFullA), nil).Once()

	out := o.ResolveAndProvision(ctx, "service-y", map[string]string{"minion": "node-a"})

	assert.False(t, out.Succeeded())
	assert.Equal(t, StageBaseline, out.Stage)
	assert.Equal(t, KindStepFailure, out.Kind)
	assert.Equal(t, FailurePrefix+"disk full", out.Message)
	fc.AssertNotCalled(t, "Submit", ctx, payloadArg("service-y"))
}

func TestResolveAndProvision_TargetPresenceCheck(t *testing.T) {
	o, fc := newTestOrchestrator(t, Options{CheckTargetPresence: true})
	ctx := context.Background()

	// needs-host has no presence probe, so it is always pushed
	fc.On("Submit", ctx, payloadArg("needs-host")).Return(respond(okNodeA), nil).Once()

	out := o.ResolveAndProvision(ctx, "needs-host", map[string]string{"hostname": "fw01", "minion": "node-a"})
	require.True(t, out.Succeeded(), out.Message)
	fc.AssertExpectations(t)
}

func TestResolveAndProvision_Failures(t *testing.T) {
	tests := []struct {
		name    string
		service string
		vars    map[string]string
		setup   func(fc *fleet.MockFleetClient)
		kind    FailureKind
		stage   Stage
		message string
	}{
		{
			name:    "unknown service",
			service: "nonexistent-service",
			kind:    KindServiceNotFound,
			stage:   StageResolve,
			message: "nonexistent-service",
		},
		{
			name:    "multi-hop extends",
			service: "chained",
			kind:    KindInvalidCatalog,
			stage:   StageResolve,
		},
		{
			name:    "no node named",
			service: "needs-host",
			vars:    map[string]string{"hostname": "fw01"},
			kind:    KindNodeNotFound,
			stage:   StageResolve,
			message: "variable minion is not set",
		},
		{
			name:    "missing variable",
			service: "needs-host",
			vars:    map[string]string{"minion": "node-a"},
			kind:    KindMissingVariable,
			stage:   StageTarget,
			message: "hostname",
		},
		{
			name:    "step failure",
			service: "needs-host",
			vars:    map[string]string{"minion": "node-a", "hostname": "fw01"},
			setup: func(fc *fleet.MockFleetClient) {
				fc.On("Submit", mock.Anything, mock.Anything).Return(respond(diskFullA), nil)
			},
			kind:    KindStepFailure,
			stage:   StageTarget,
			message: "disk full",
		},
		{
			name:    "node missing from answer",
			service: "needs-host",
			vars:    map[string]string{"minion": "node-b", "hostname": "fw01"},
			setup: func(fc *fleet.MockFleetClient) {
				fc.On("Submit", mock.Anything, mock.Anything).Return(respond(okNodeA), nil)
			},
			kind:    KindNodeNotFound,
			stage:   StageTarget,
			message: "node-b",
		},
		{
			name:    "malformed answer",
			service: "needs-host",
			vars:    map[string]string{"minion": "node-a", "hostname": "fw01"},
			setup: func(fc *fleet.MockFleetClient) {
				fc.On("Submit", mock.Anything, mock.Anything).Return(respond("<html>502</html>"), nil)
			},
			kind:    KindMalformedResponse,
			stage:   StageTarget,
			message: "Could not parse response",
		},
		{
			name:    "authentication failure",
			service: "needs-host",
			vars:    map[string]string{"minion": "node-a", "hostname": "fw01"},
			setup: func(fc *fleet.MockFleetClient) {
				fc.On("Submit", mock.Anything, mock.Anything).
					Return(nil, &fleet.RemoteCallError{Op: "login", Kind: fleet.KindConnection, Err: assert.AnError})
			},
			kind:    KindAuthFailure,
			stage:   StageTarget,
			message: "could not connect to automation system",
		},
		{
			name:    "timeout",
			service: "needs-host",
			vars:    map[string]string{"minion": "node-a", "hostname": "fw01"},
			setup: func(fc *fleet.MockFleetClient) {
				fc.On("Submit", mock.Anything, mock.Anything).
					Return(nil, &fleet.RemoteCallError{Op: "submit", Kind: fleet.KindTimeout, Err: context.DeadlineExceeded})
			},
			kind:  KindTimeout,
			stage: StageTarget,
		},
		{
			name:    "error status",
			service: "needs-host",
			vars:    map[string]string{"minion": "node-a", "hostname": "fw01"},
			setup: func(fc *fleet.MockFleetClient) {
				fc.On("Submit", mock.Anything, mock.Anything).
					Return(&interfaces.SubmitResponse{StatusCode: 500, Body: []byte("boom")},
						&fleet.RemoteCallError{Op: "submit", Kind: fleet.KindStatus, StatusCode: 500, Body: []byte("boom")})
			},
			kind:    KindRemoteCall,
			stage:   StageTarget,
			message: "500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, fc := newTestOrchestrator(t, Options{})
			if tt.setup != nil {
				tt.setup(fc)
			}

			out := o.ResolveAndProvision(context.Background(), tt.service, tt.vars)

			assert.Equal(t, StatusFailure, out.Status)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.stage, out.Stage)
			assert.Equal(t, tt.service, out.Service)
			assert.Contains(t, out.Message, tt.message)
			if tt.setup == nil {
				fc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestResolveAndProvision_CanceledWhileWaitingForLock(t *testing.T) {
	o, fc := newTestOrchestrator(t, Options{})

	unlock, err := o.locks.Lock(context.Background(), lockKey("needs-host", "node-a"))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := o.ResolveAndProvision(ctx, "needs-host", map[string]string{"minion": "node-a", "hostname": "fw01"})
	assert.Equal(t, KindCanceled, out.Kind)
	fc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestListExecutionNodes(t *testing.T) {
	o, fc := newTestOrchestrator(t, Options{})
	ctx := context.Background()

	fc.On("ListNodes", ctx).Return([]string{}, nil).Once()
	nodes, err := o.ListExecutionNodes(ctx)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	fc.On("ListNodes", ctx).Return(nil, interfaces.ErrRemoteCall).Once()
	nodes, err = o.ListExecutionNodes(ctx)
	assert.ErrorIs(t, err, interfaces.ErrRemoteCall)
	assert.Nil(t, nodes)
}

func TestListCatalog(t *testing.T) {
	o, _ := newTestOrchestrator(t, Options{})
	ctx := context.Background()

	services, err := o.ListCatalog(ctx, interfaces.ServiceTypeService)
	require.NoError(t, err)
	require.Len(t, services, 3)
	// ordered by label, unlabelled first
	assert.Equal(t, "chained", services[0].Name)
	assert.Equal(t, "needs-host", services[1].Name)
	assert.Equal(t, "service-y", services[2].Name)
	assert.Equal(t, "baseline-x", services[2].Extends)

	all, err := o.ListCatalog(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestExecute(t *testing.T) {
	o, fc := newTestOrchestrator(t, Options{})
	ctx := context.Background()

	fc.On("Submit", ctx, payloadArg("needs-host")).
		Return(respond(`{"return": [{"node-a": {"vm1": "running", "vm2": "shutdown"}}]}`), nil).Once()

	result, out := o.Execute(ctx, "needs-host", map[string]string{"hostname": "fw01", "minion": "node-a"})
	require.True(t, out.Succeeded(), out.Message)
	require.Contains(t, result, "node-a")
	assert.Equal(t, "running", result["node-a"].Steps["vm1"].Comment)

	_, out = o.Execute(ctx, "needs-host", nil)
	assert.Equal(t, KindMissingVariable, out.Kind)
}
