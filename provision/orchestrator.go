package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/snippet-provisioning-backend/catalog"
	"github.com/ruteri/snippet-provisioning-backend/fleet"
	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/ruteri/snippet-provisioning-backend/metrics"
	"github.com/ruteri/snippet-provisioning-backend/render"
)

const (
	// LabelPresenceCheck names the probe bundle that tells whether a service is
	// already configured on a node.
	LabelPresenceCheck = "presence_check"

	// LabelNodeVariable names the context variable holding the target node.
	LabelNodeVariable = "node_variable"

	// DefaultNodeVariable is used when a definition has no node_variable label.
	DefaultNodeVariable = "minion"
)

// ServiceCatalog is the part of the catalog the orchestrator needs.
type ServiceCatalog interface {
	LoadByName(ctx context.Context, name string) (*interfaces.ServiceDefinition, bool, error)
	LoadByType(ctx context.Context, typ interfaces.ServiceType) ([]*interfaces.ServiceDefinition, error)
	ResolveBaseline(ctx context.Context, def *interfaces.ServiceDefinition) (*interfaces.ServiceDefinition, error)
}

// Renderer renders the snippets of a definition.
type Renderer interface {
	Render(ctx context.Context, def *interfaces.ServiceDefinition, vars interfaces.VariableContext) ([]render.Document, error)
}

// Options tune orchestration policy.
type Options struct {
	// CheckTargetPresence runs the target's presence probe before pushing it.
	// By default the target is always pushed and only the baseline is checked.
	CheckTargetPresence bool
}

// Orchestrator resolves services against the catalog and pushes them, and
// their baseline when needed, to the control plane.
type Orchestrator struct {
	catalog  ServiceCatalog
	renderer Renderer
	fleet    interfaces.FleetClient
	locks    *keyedMutex
	opts     Options
	log      *slog.Logger
}

// NewOrchestrator wires an orchestrator.
func NewOrchestrator(catalog ServiceCatalog, renderer Renderer, fleet interfaces.FleetClient, opts Options, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		catalog:  catalog,
		renderer: renderer,
		fleet:    fleet,
		locks:    newKeyedMutex(),
		opts:     opts,
		log:      log,
	}
}

// Resolution is a target with its baseline and the merged variable context.
type Resolution struct {
	Target   *interfaces.ServiceDefinition
	Baseline *interfaces.ServiceDefinition
	Vars     interfaces.VariableContext
}

// Resolve looks up name and its baseline and merges vars with their defaults.
func (o *Orchestrator) Resolve(ctx context.Context, name string, vars map[string]string) (*Resolution, error) {
	target, ok, err := o.catalog.LoadByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrServiceNotFound, name)
	}

	baseline, err := o.catalog.ResolveBaseline(ctx, target)
	if err != nil {
		return nil, err
	}

	return &Resolution{
		Target:   target,
		Baseline: baseline,
		Vars:     MergeContext(baseline, target, vars),
	}, nil
}

// ResolveAndProvision provisions the named service with the caller's variables.
//
// The baseline, if the service extends one, is pushed first unless its
// presence probe reports it configured. The target is then pushed and the
// control plane's per-step answer interpreted. Probe and push of one service
// on one node never interleave with another request for the same pair.
func (o *Orchestrator) ResolveAndProvision(ctx context.Context, name string, vars map[string]string) (out Outcome) {
	requestID := uuid.NewString()
	log := o.log.With(slog.String("request_id", requestID), slog.String("service", name))
	start := time.Now()

	defer func() {
		out.Service = name
		out.RequestID = requestID
		metrics.RecordProvisioning(name, string(out.Status), time.Since(start))
		if out.Succeeded() {
			log.Info("Provisioning succeeded", slog.String("node", out.Node), slog.Duration("duration", time.Since(start)))
		} else {
			log.Warn("Provisioning failed",
				slog.String("kind", string(out.Kind)),
				slog.String("stage", string(out.Stage)),
				slog.String("message", out.Message))
		}
	}()

	res, err := o.Resolve(ctx, name, vars)
	if err != nil {
		out = failureFromError(err)
		out.Stage = StageResolve
		return out
	}

	node := nodeFor(res.Target, res.Vars)
	if node == "" {
		out = failure(KindNodeNotFound, fmt.Sprintf(noNodeNamed, nodeVariable(res.Target)))
		out.Stage = StageResolve
		return out
	}
	log = log.With(slog.String("node", node))

	if res.Baseline != nil {
		pushed, baselineOut := o.ensure(ctx, log, res.Baseline, res.Vars, node, true)
		if !baselineOut.Succeeded() {
			baselineOut.Stage = StageBaseline
			return baselineOut
		}
		out.BaselinePushed = pushed
	}

	_, targetOut := o.ensure(ctx, log, res.Target, res.Vars, node, o.opts.CheckTargetPresence)
	targetOut.Stage = StageTarget
	targetOut.BaselinePushed = out.BaselinePushed
	return targetOut
}

// ensure pushes def unless checkFirst is set and its probe reports it present.
// It reports whether a push happened.
func (o *Orchestrator) ensure(ctx context.Context, log *slog.Logger, def *interfaces.ServiceDefinition, vars interfaces.VariableContext, node string, checkFirst bool) (bool, Outcome) {
	unlock, err := o.locks.Lock(ctx, lockKey(def.Name, node))
	if err != nil {
		return false, failureFromError(err)
	}
	defer unlock()

	if checkFirst {
		isPresent, probeOut := o.isPresent(ctx, log, def, vars, node)
		if probeOut != nil {
			return false, *probeOut
		}
		if isPresent {
			log.Info("Configuration already present, not pushing", slog.String("bundle", def.Name))
			return false, success(node, fmt.Sprintf(presentFormat, node))
		}
	}

	log.Info("Pushing configuration", slog.String("bundle", def.Name))
	return true, o.push(ctx, def, vars, node)
}

// isPresent runs def's presence probe. A definition without a probe is never
// present. A non-nil outcome means presence could not be determined.
func (o *Orchestrator) isPresent(ctx context.Context, log *slog.Logger, def *interfaces.ServiceDefinition, vars interfaces.VariableContext, node string) (bool, *Outcome) {
	probeName := def.LabelValue(LabelPresenceCheck)
	if probeName == "" {
		return false, nil
	}

	probe, ok, err := o.catalog.LoadByName(ctx, probeName)
	if err != nil {
		out := failureFromError(err)
		return false, &out
	}
	if !ok {
		out := failure(KindInvalidCatalog, fmt.Sprintf("presence probe %s of %s not found in catalog", probeName, def.Name))
		return false, &out
	}

	docs, err := o.renderer.Render(ctx, probe, vars)
	if err != nil {
		out := failureFromError(err)
		return false, &out
	}

	for _, doc := range docs {
		resp, err := o.submit(ctx, doc)
		if err != nil {
			out := failureFromError(err)
			return false, &out
		}
		ok, err := present(resp.Body, node)
		if err != nil {
			out := failureFromError(err)
			return false, &out
		}
		if !ok {
			log.Debug("Presence probe reports configuration absent", slog.String("probe", probe.Name))
			return false, nil
		}
	}
	return len(docs) > 0, nil
}

// push renders def and submits its documents in order, stopping at the first
// document that does not succeed on node.
func (o *Orchestrator) push(ctx context.Context, def *interfaces.ServiceDefinition, vars interfaces.VariableContext, node string) Outcome {
	docs, err := o.renderer.Render(ctx, def, vars)
	if err != nil {
		return failureFromError(err)
	}
	if len(docs) == 0 {
		return failure(KindInvalidCatalog, fmt.Sprintf("%s has no snippets to push", def.Name))
	}

	var out Outcome
	for _, doc := range docs {
		resp, err := o.submit(ctx, doc)
		if err != nil {
			return failureFromError(err)
		}
		out = Interpret(resp.Body, node)
		if !out.Succeeded() {
			return out
		}
	}
	return out
}

func (o *Orchestrator) submit(ctx context.Context, doc render.Document) (*interfaces.SubmitResponse, error) {
	payload, err := render.Payload(doc)
	if err != nil {
		return nil, err
	}
	resp, err := o.fleet.Submit(ctx, payload)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Execute renders and submits a single definition, skipping baseline and
// presence handling, and returns the parsed per-node answer. It serves
// query-style snippets such as listing what runs on a node.
func (o *Orchestrator) Execute(ctx context.Context, name string, vars map[string]string) (interfaces.ExecutionResult, Outcome) {
	res, err := o.Resolve(ctx, name, vars)
	if err != nil {
		out := failureFromError(err)
		out.Service = name
		return nil, out
	}

	docs, err := o.renderer.Render(ctx, res.Target, res.Vars)
	if err != nil {
		out := failureFromError(err)
		out.Service = name
		return nil, out
	}

	merged := interfaces.ExecutionResult{}
	for _, doc := range docs {
		resp, err := o.submit(ctx, doc)
		if err != nil {
			out := failureFromError(err)
			out.Service = name
			return nil, out
		}
		result, err := fleet.ParseExecutionResult(resp.Body)
		if err != nil {
			out := failure(KindMalformedResponse, malformedMsg)
			out.Service = name
			return nil, out
		}
		for node, nodeResult := range result {
			merged[node] = nodeResult
		}
	}

	out := success(nodeFor(res.Target, res.Vars), fmt.Sprintf("Executed %s on %d node(s)", name, len(merged)))
	out.Service = name
	return merged, out
}

// ListExecutionNodes returns the nodes the control plane manages. An empty
// list with a nil error means it manages none.
func (o *Orchestrator) ListExecutionNodes(ctx context.Context) ([]string, error) {
	return o.fleet.ListNodes(ctx)
}

// ListCatalog returns catalog summaries, optionally filtered by type, ordered by label.
func (o *Orchestrator) ListCatalog(ctx context.Context, typ interfaces.ServiceType) ([]interfaces.ServiceSummary, error) {
	defs, err := o.catalog.LoadByType(ctx, typ)
	if err != nil {
		return nil, err
	}
	return catalog.Summaries(defs), nil
}

// Describe returns the definition of a service.
func (o *Orchestrator) Describe(ctx context.Context, name string) (*interfaces.ServiceDefinition, bool, error) {
	return o.catalog.LoadByName(ctx, name)
}

// nodeFor returns the target node named in vars, or "" if vars names none.
func nodeFor(def *interfaces.ServiceDefinition, vars interfaces.VariableContext) string {
	return vars[nodeVariable(def)]
}

// nodeVariable returns the context variable that names def's target node.
func nodeVariable(def *interfaces.ServiceDefinition) string {
	if key := def.LabelValue(LabelNodeVariable); key != "" {
		return key
	}
	return DefaultNodeVariable
}
