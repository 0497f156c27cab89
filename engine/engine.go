// Package engine wires the Template Resolver, Node Output Normalizer,
// Node Registry & Dispatch, Input Assembler, Scheduler, and Run
// Coordinator (SPEC_FULL.md §4) into a single Engine: register
// handlers once, then Run any number of workflow documents against
// them concurrently.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/flowengine/resolver"
	"github.com/lyzr/flowengine/sdk"
)

// RunStore persists finished run reports. The default Engine uses an
// in-memory store; store/runstore provides a Postgres-backed one.
type RunStore interface {
	Save(ctx context.Context, report sdk.Report) error
	Get(ctx context.Context, runID string) (sdk.Report, bool, error)
}

// StatusBroadcaster fans out live run snapshots as a run progresses.
// The default Engine uses a no-op broadcaster; store/statuscache
// provides a Redis pub/sub-backed one.
type StatusBroadcaster interface {
	Publish(ctx context.Context, snapshot sdk.Snapshot) error
}

type noopStore struct {
	mu      sync.Mutex
	reports map[string]sdk.Report
}

func newNoopStore() *noopStore { return &noopStore{reports: make(map[string]sdk.Report)} }

func (s *noopStore) Save(_ context.Context, report sdk.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.RunID] = report
	return nil
}

func (s *noopStore) Get(_ context.Context, runID string) (sdk.Report, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[runID]
	return r, ok, nil
}

type noopBroadcaster struct{}

func (noopBroadcaster) Publish(context.Context, sdk.Snapshot) error { return nil }

// Engine owns a handler registry and the run-coordination machinery.
// It is safe for concurrent use: Run may be called from multiple
// goroutines for independent runs.
type Engine struct {
	registry    *Registry
	resolver    *resolver.Resolver
	logger      sdk.Logger
	clock       func() time.Time
	maxInFlight int

	store       RunStore
	broadcaster StatusBroadcaster

	mu     sync.Mutex
	active map[string]*activeRun
}

// activeRun is the live bookkeeping Cancel/Status reach into while a
// run is in flight.
type activeRun struct {
	mu        sync.RWMutex
	cancel    context.CancelFunc
	tracker   *runTracker
	table     *outputTable
	results   map[string]sdk.NodeResult
	startedAt time.Time
	done      bool
	status    sdk.RunStatus
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger overrides the default no-op logger.
func WithLogger(l sdk.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithClock overrides time.Now, primarily for deterministic tests.
func WithClock(fn func() time.Time) Option { return func(e *Engine) { e.clock = fn } }

// WithMaxInFlight bounds concurrent builtin-kind node execution
// (integration/AI handlers are I/O-bound and run unbounded).
func WithMaxInFlight(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxInFlight = n
		}
	}
}

// WithTimeouts overrides the default per-kind node deadlines (§5:
// integration 60s, AI 120s); zero leaves that kind's default
// unchanged. Lets Config.IntegrationTimeout/Config.AITimeout reach the
// dispatch table registry.Lookup consults.
func WithTimeouts(integration, ai time.Duration) Option {
	return func(e *Engine) {
		if integration > 0 {
			e.registry.SetTimeout(sdk.HandlerKindIntegration, integration)
		}
		if ai > 0 {
			e.registry.SetTimeout(sdk.HandlerKindAI, ai)
		}
	}
}

// WithRunStore attaches a durable store for finished run reports.
func WithRunStore(s RunStore) Option { return func(e *Engine) { e.store = s } }

// WithStatusBroadcaster attaches a live-snapshot fan-out sink.
func WithStatusBroadcaster(b StatusBroadcaster) Option { return func(e *Engine) { e.broadcaster = b } }

type discardLogger struct{}

func (discardLogger) Debug(string, ...any)     {}
func (discardLogger) Info(string, ...any)      {}
func (discardLogger) Warn(string, ...any)      {}
func (discardLogger) Error(string, ...any)     {}
func (d discardLogger) With(...any) sdk.Logger { return d }

// New returns a ready Engine with no handlers registered; call
// Register (or RegisterBuiltins from the nodes package) before Run.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry:    NewRegistry(),
		resolver:    resolver.New(),
		logger:      discardLogger{},
		clock:       time.Now,
		maxInFlight: 8,
		store:       newNoopStore(),
		broadcaster: noopBroadcaster{},
		active:      make(map[string]*activeRun),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register binds a handler to a node type tag.
func (e *Engine) Register(typeTag string, kind sdk.HandlerKind, h sdk.Handler) {
	e.registry.Register(typeTag, kind, h)
}

// Cancel requests cancellation of an in-flight run. New nodes stop
// being dispatched; nodes already running observe ctx cancellation
// cooperatively and the run finishes with status "cancelled".
func (e *Engine) Cancel(runID string) error {
	e.mu.Lock()
	ar, ok := e.active[runID]
	e.mu.Unlock()
	if !ok {
		return sdk.NewError(sdk.ErrInvalidWorkflow, "unknown run id: "+runID, nil)
	}
	ar.cancel()
	return nil
}

// Status returns a live snapshot of an in-flight run. Once a run has
// finished and left the active set, the snapshot is rebuilt from its
// report in the Run Store.
func (e *Engine) Status(runID string) (sdk.Snapshot, error) {
	e.mu.Lock()
	ar, ok := e.active[runID]
	e.mu.Unlock()
	if !ok {
		if report, found, err := e.store.Get(context.Background(), runID); err == nil && found {
			return sdk.Snapshot{
				RunID: runID, Status: report.Status, Done: true,
				NodeResults: report.NodeResults, ExecutionPath: report.ExecutionPath, AsOf: report.FinishedAt,
			}, nil
		}
		return sdk.Snapshot{}, sdk.NewError(sdk.ErrInvalidWorkflow, "unknown run id: "+runID, nil)
	}
	ar.mu.RLock()
	defer ar.mu.RUnlock()
	return sdk.Snapshot{
		RunID:         runID,
		Status:        ar.status,
		Done:          ar.done,
		NodeResults:   cloneResults(ar.results),
		ExecutionPath: append([]string(nil), ar.tracker.executionPath...),
		AsOf:          e.clock(),
	}, nil
}

func cloneResults(m map[string]sdk.NodeResult) map[string]sdk.NodeResult {
	out := make(map[string]sdk.NodeResult, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Run executes wf to completion (or cancellation) and returns the
// final report. It blocks until every node has reached a terminal
// status, or until ctx is cancelled -- in which case it requests the
// run's own cancellation and still waits for the (now-cancelled)
// report, so in-flight nodes can finish cooperatively.
func (e *Engine) Run(ctx context.Context, wf sdk.Workflow, inputs sdk.RunInputs) (sdk.Report, error) {
	_, reportCh, cancel, err := e.start(wf, inputs)
	if err != nil {
		return sdk.Report{}, err
	}
	select {
	case report := <-reportCh:
		return report, nil
	case <-ctx.Done():
		cancel()
		return <-reportCh, nil
	}
}

// RunAsync starts wf executing in the background and returns its run
// id immediately, before any node has necessarily dispatched -- the
// id is already registered against Cancel/Status by the time this
// call returns. The run's lifetime is independent of any caller
// context; use Cancel(runID) to stop it early. Callers that want the
// report should poll Status or consult the Run Store once Status
// reports Done.
func (e *Engine) RunAsync(wf sdk.Workflow, inputs sdk.RunInputs) (string, error) {
	runID, _, _, err := e.start(wf, inputs)
	return runID, err
}

// start compiles wf, registers its active run, and launches the
// coordinator loop in a goroutine rooted in its own background
// context, so the run outlives whatever request triggered it. It
// returns as soon as the run id is registered, well before the run
// finishes; reportCh receives exactly one value once it does.
func (e *Engine) start(wf sdk.Workflow, inputs sdk.RunInputs) (string, <-chan sdk.Report, context.CancelFunc, error) {
	g, err := compile(wf)
	if err != nil {
		return "", nil, nil, err
	}
	if err := e.validateNodeTypes(g); err != nil {
		return "", nil, nil, err
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())

	table := newOutputTable()
	tracker := newRunTracker(g)
	ar := &activeRun{
		cancel:    cancel,
		tracker:   tracker,
		table:     table,
		results:   make(map[string]sdk.NodeResult),
		startedAt: e.clock(),
		status:    sdk.RunCompleted,
	}

	e.mu.Lock()
	e.active[runID] = ar
	e.mu.Unlock()

	reportCh := make(chan sdk.Report, 1)
	go func() {
		defer cancel()
		defer func() {
			e.mu.Lock()
			delete(e.active, runID)
			e.mu.Unlock()
		}()
		reportCh <- e.coordinate(runCtx, runID, g, ar, inputs)
	}()

	return runID, reportCh, cancel, nil
}

// coordinate is the single-writer run loop: it dispatches ready nodes,
// applies their results to ar as they come back, and re-evaluates
// readiness until every node is terminal or the run is cancelled.
func (e *Engine) coordinate(runCtx context.Context, runID string, g *graph, ar *activeRun, inputs sdk.RunInputs) sdk.Report {
	inputNodeIndex := make(map[string]int)
	idx := 0
	for _, id := range g.order {
		if g.nodes[id].node.Type == "input" {
			inputNodeIndex[id] = idx
			idx++
		}
	}

	sem := make(chan struct{}, e.maxInFlight)
	results := make(chan nodeRunResult)

	pending := 0
	cancelled := false
	var warnings []sdk.ResolveWarning

	dispatch := func(id string) {
		pending++
		cn := g.nodes[id]
		go func() {
			if e.isBuiltinKind(cn.node.Type) {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			res := e.runNode(runCtx, runID, cn, inputNodeIndex[id], ar.table, inputs)
			results <- res
		}()
	}

	for _, id := range ar.tracker.advance() {
		dispatch(id)
	}

	doneCh := runCtx.Done()
	for !ar.tracker.allTerminal() {
		if pending == 0 {
			break
		}
		select {
		case res := <-results:
			pending--
			e.applyResult(ar, res)
			warnings = append(warnings, e.collectWarnings(g.nodes[res.nodeID], inputNodeIndex[res.nodeID], ar.table, inputs)...)
			e.publishHeartbeat(ar, runID)
			if !cancelled {
				for _, id := range ar.tracker.advance() {
					dispatch(id)
				}
			}
		case <-doneCh:
			cancelled = true
			doneCh = nil
		}
	}

	if runCtx.Err() != nil {
		cancelled = true
	}

	finishedAt := e.clock()
	report := e.buildReport(runID, ar, cancelled, warnings, finishedAt)

	ar.mu.Lock()
	ar.done = true
	ar.status = report.Status
	ar.mu.Unlock()

	e.store.Save(context.Background(), report)
	e.broadcaster.Publish(context.Background(), sdk.Snapshot{
		RunID: runID, Status: report.Status, Done: true,
		NodeResults: report.NodeResults, ExecutionPath: report.ExecutionPath, AsOf: finishedAt,
	})

	return report
}

// publishHeartbeat lets an external supervisor (cmd/engine-supervisor)
// notice a run that has stopped making progress: every node
// transition republishes the live snapshot with a fresh AsOf.
func (e *Engine) publishHeartbeat(ar *activeRun, runID string) {
	ar.mu.RLock()
	snap := sdk.Snapshot{
		RunID:         runID,
		Status:        ar.status,
		Done:          ar.done,
		NodeResults:   cloneResults(ar.results),
		ExecutionPath: append([]string(nil), ar.tracker.executionPath...),
		AsOf:          e.clock(),
	}
	ar.mu.RUnlock()
	e.broadcaster.Publish(context.Background(), snap)
}

// validateNodeTypes rejects a workflow referencing an unregistered node
// type before any handler runs, the same "invalid_workflow aborts the
// whole run before dispatch" guarantee compile() already gives duplicate
// ids, dangling edges, and cycles (spec.md §7/§8). Without this check,
// a bad type on one node is only discovered when that node reaches
// runNode, by which time independent sibling/downstream nodes may
// already have dispatched and executed side effects.
func (e *Engine) validateNodeTypes(g *graph) error {
	for _, id := range g.order {
		typeTag := g.nodes[id].node.Type
		if !e.registry.Has(typeTag) {
			return sdk.NewError(sdk.ErrInvalidWorkflow, fmt.Sprintf("unknown node type %q for node %q", typeTag, id), nil)
		}
	}
	return nil
}

func (e *Engine) isBuiltinKind(typeTag string) bool {
	reg, ok := e.registry.entries[typeTag]
	return ok && reg.kind == sdk.HandlerKindBuiltin
}

// collectWarnings re-derives the resolve warnings produced while
// assembling a node's inputs, so they can be attached to the final
// report without threading them through the results channel.
func (e *Engine) collectWarnings(cn *compiledNode, inputIndex int, table *outputTable, inputs sdk.RunInputs) []sdk.ResolveWarning {
	bundle := assemble(cn, inputIndex, table, inputs, e.resolver)
	for i := range bundle.warnings {
		bundle.warnings[i].NodeID = cn.node.ID
	}
	return bundle.warnings
}

func (e *Engine) applyResult(ar *activeRun, res nodeRunResult) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	st := ar.tracker.states[res.nodeID]
	ar.tracker.executionPath = append(ar.tracker.executionPath, res.nodeID)

	if res.err != nil {
		st.status = sdk.StatusFailed
		ar.results[res.nodeID] = sdk.NodeResult{
			Status:        sdk.StatusFailed,
			ExecutionTime: res.duration.Seconds(),
			Error:         res.err,
		}
		return
	}

	st.status = sdk.StatusCompleted
	ar.table.set(res.nodeID, res.output)
	if ar.tracker.g.nodes[res.nodeID].node.Type == "condition" {
		ar.tracker.conditionMatch[res.nodeID] = res.matched
	}
	ar.results[res.nodeID] = sdk.NodeResult{
		Status:        sdk.StatusCompleted,
		ExecutionTime: res.duration.Seconds(),
	}
}

// buildReport computes the run's overall terminal status from each
// node's final state: cancelled if the run context was cancelled before
// every node completed or was skipped, completed if every node completed
// or was skipped, failed if no node completed and at least one failed,
// partial otherwise.
func (e *Engine) buildReport(runID string, ar *activeRun, cancelled bool, warnings []sdk.ResolveWarning, finishedAt time.Time) sdk.Report {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	completed, failed, skipped := 0, 0, 0
	for _, st := range ar.tracker.states {
		switch st.status {
		case sdk.StatusCompleted:
			completed++
		case sdk.StatusFailed:
			failed++
		case sdk.StatusSkipped:
			skipped++
		}
	}
	total := len(ar.tracker.states)

	var status sdk.RunStatus
	switch {
	case cancelled && completed+skipped < total:
		status = sdk.RunCancelled
	case completed+skipped == total:
		status = sdk.RunCompleted
	case completed == 0 && failed > 0:
		status = sdk.RunFailed
	default:
		status = sdk.RunPartial
	}

	nodeResults := make(map[string]sdk.NodeResult, total)
	for id, st := range ar.tracker.states {
		if nr, ok := ar.results[id]; ok {
			nodeResults[id] = nr
			continue
		}
		nr := sdk.NodeResult{Status: st.status}
		if st.status == sdk.StatusSkipped {
			nr.Error = sdk.NewError(sdk.ErrorKind(st.reason), fmt.Sprintf("node %s skipped: %s", id, st.reason), nil)
		}
		nodeResults[id] = nr
	}

	return sdk.Report{
		RunID:         runID,
		Status:        status,
		Outputs:       ar.table.snapshot(),
		NodeResults:   nodeResults,
		ExecutionPath: append([]string(nil), ar.tracker.executionPath...),
		ExecutionTime: finishedAt.Sub(ar.startedAt).Seconds(),
		Warnings:      warnings,
		FinishedAt:    finishedAt,
	}
}
