package provision

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpret(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		node    string
		status  Status
		kind    FailureKind
		message string
	}{
		{
			name:    "failed step",
			body:    diskFullA,
			node:    "node-a",
			status:  StatusFailure,
			kind:    KindStepFailure,
			message: "disk full",
		},
		{
			name:    "all steps succeeded",
			body:    `{"return":[{"node-a":{"step1":{"result":true,"comment":""}}}]}`,
			node:    "node-a",
			status:  StatusSuccess,
			message: "node-a",
		},
		{
			name:    "not structured",
			body:    `this is not json`,
			node:    "node-a",
			status:  StatusFailure,
			kind:    KindMalformedResponse,
			message: "Could not parse response",
		},
		{
			name:    "node absent",
			body:    okNodeA,
			node:    "node-z",
			status:  StatusFailure,
			kind:    KindNodeNotFound,
			message: "node-z",
		},
		{
			name:    "sole node used when none named",
			body:    okNodeA,
			status:  StatusSuccess,
			message: "node-a",
		},
		{
			name:    "several nodes and none named",
			body:    `{"return":[{"node-a":{},"node-b":{}}]}`,
			status:  StatusFailure,
			kind:    KindNodeNotFound,
			message: "No compute node found",
		},
		{
			name:    "node did not return",
			body:    `{"return":[{"node-a":"Minion did not return. [No response]"}]}`,
			node:    "node-a",
			status:  StatusFailure,
			kind:    KindStepFailure,
			message: "Minion did not return",
		},
		{
			name:    "null result is not success",
			body:    `{"return":[{"node-a":{"s":{"result":null,"comment":"requisite failed"}}}]}`,
			node:    "node-a",
			status:  StatusFailure,
			kind:    KindStepFailure,
			message: "requisite failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Interpret([]byte(tt.body), tt.node)
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Contains(t, out.Message, tt.message)
		})
	}
}

func TestInterpret_FirstFailingStepInExecutionOrder(t *testing.T) {
	body := `{"return":[{"node-a":{
		"b":{"result":false,"comment":"second","__run_num__":1},
		"a":{"result":false,"comment":"first","__run_num__":0}}}]}`

	out := Interpret([]byte(body), "node-a")
	assert.Equal(t, FailurePrefix+"first", out.Message)
	assert.Equal(t, "node-a", out.Node)
}

func TestPresent(t *testing.T) {
	ok, err := present([]byte(okNodeA), "node-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = present([]byte(absentProbe), "node-a")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = present([]byte(`{"return":[{"node-a":{}}]}`), "node-a")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = present([]byte(`garbage`), "node-a")
	assert.ErrorIs(t, err, interfaces.ErrMalformedRemoteResponse)
}

func TestMergeContext(t *testing.T) {
	strPtr := func(s string) *string { return &s }
	baseline := &interfaces.ServiceDefinition{Name: "base", Variables: []interfaces.VariableSpec{
		{Name: "region", Default: strPtr("us")},
		{Name: "shared", Default: strPtr("from-baseline")},
		{Name: "nodefault"},
	}}
	target := &interfaces.ServiceDefinition{Name: "svc", Extends: "base", Variables: []interfaces.VariableSpec{
		{Name: "sku", Default: strPtr("std")},
		{Name: "shared", Default: strPtr("from-target")},
	}}

	caller := map[string]string{"sku": "pro"}
	vars := MergeContext(baseline, target, caller)

	assert.Equal(t, interfaces.VariableContext{"region": "us", "sku": "pro", "shared": "from-target"}, vars)
	assert.Equal(t, map[string]string{"sku": "pro"}, caller)

	vars = MergeContext(nil, target, map[string]string{"shared": ""})
	assert.Equal(t, "", vars["shared"])
	assert.Equal(t, "std", vars["sku"])
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	ctx := context.Background()

	unlock, err := k.Lock(ctx, "a")
	require.NoError(t, err)

	// another key is independent
	unlockB, err := k.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		u, err := k.Lock(ctx, "a")
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	wg.Wait()
	<-acquired
	assert.Equal(t, 0, k.size())

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	held, err := k.Lock(ctx, "c")
	require.NoError(t, err)
	_, err = k.Lock(timeoutCtx, "c")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	held()
	assert.Equal(t, 0, k.size())
}
