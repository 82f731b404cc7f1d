// Package orchestrator implements the Pipeline Orchestrator (C10): it
// drives manifest discovery (C1) and scheduling (C2), then for every node
// in dependency order runs render -> quote -> govern -> persist ->
// pre-flight lint -> materialize (C6) -> validate (C7) -> row count ->
// post-flight compliance (C8) -> state update, with bounded concurrency
// within each layer.
package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/axel-mauroy/verity-governance-as-code/domain/governance"
	"github.com/axel-mauroy/verity-governance-as-code/domain/graph"
	"github.com/axel-mauroy/verity-governance-as-code/domain/manifest"
	"github.com/axel-mauroy/verity-governance-as-code/domain/quoter"
	"github.com/axel-mauroy/verity-governance-as-code/domain/verrors"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/config"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/fs"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/logging"
	"github.com/axel-mauroy/verity-governance-as-code/infrastructure/metrics"

	"github.com/axel-mauroy/verity-governance-as-code/application/materialize"
	"github.com/axel-mauroy/verity-governance-as-code/application/validate"
	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

// Orchestrator wires the ports the pipeline depends on to a resolved
// project configuration; one instance drives one project directory.
type Orchestrator struct {
	ProjectDir string
	Config     config.AppConfig

	Loader    ports.ManifestLoader
	Schema    ports.SchemaSource
	Connector ports.Connector
	Template  ports.TemplateEngine

	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// RunOptions customizes a single Run invocation.
type RunOptions struct {
	// Select restricts execution to a single node; its dependencies are
	// assumed already present (§6 CLI surface, `run --select`).
	Select string
}

// Run executes the full C1->C10 pipeline once and returns its summary.
// A non-nil error is always a fatal pipeline failure and carries the
// actionable hint §7 requires. When a node fails, the returned RunResult
// has Success false; errors raised before any layer runs return a nil
// RunResult.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	runID := uuid.New().String()
	targetDir := o.Config.Project.TargetPath
	if targetDir == "" {
		targetDir = "target"
	}
	if !filepath.IsAbs(targetDir) {
		targetDir = filepath.Join(o.ProjectDir, targetDir)
	}
	if _, err := fs.EnsureRooted(o.ProjectDir, targetDir); err != nil {
		return nil, err
	}

	m, err := o.Loader.Load(ctx, o.ProjectDir, o.Config.Project)
	if err != nil {
		return nil, err
	}

	layers, err := graph.PlanExecution(m)
	if err != nil {
		return nil, err
	}
	if opts.Select != "" {
		if _, ok := m.Nodes[opts.Select]; !ok {
			return nil, verrors.ModelNotFound(opts.Select)
		}
		layers = []graph.Layer{{opts.Select}}
	}

	if err := writeManifestSnapshot(targetDir, m); err != nil {
		return nil, err
	}

	policySet := buildGlobalPolicySet(m, o.Config.Project.Governance.Salt)
	if !policySet.IsEmpty() && o.Connector.SupportsPlanGovernance() {
		if err := o.Connector.RegisterGovernance(policySet.ToGovernancePolicySet()); err != nil {
			return nil, err
		}
	}

	state, err := loadState(targetDir)
	if err != nil {
		return nil, err
	}

	concurrency := int64(o.Config.Project.Concurrency)
	if concurrency <= 0 {
		concurrency = 8
	}

	piiPatterns := o.Config.Policies.CompilePIIPatterns()

	result := &RunResult{RunID: runID, Success: true}
	var resultMu sync.Mutex

	for layerIdx, layer := range layers {
		layerName := fmt.Sprintf("layer_%02d", layerIdx)
		sem := semaphore.NewWeighted(concurrency)
		group, gctx := errgroup.WithContext(ctx)

		type nodeOutcome struct {
			name     string
			newState manifest.ModelExecutionState
		}
		outcomes := make(chan nodeOutcome, len(layer))

		for _, nodeName := range layer {
			nodeName := nodeName
			node := m.Nodes[nodeName]
			if err := sem.Acquire(gctx, 1); err != nil {
				break
			}
			group.Go(func() error {
				defer sem.Release(1)
				newState, err := o.runNode(gctx, node, targetDir, layerName, state[nodeName], policySet, piiPatterns)
				if err != nil {
					return fmt.Errorf("model %q: %w", nodeName, err)
				}
				outcomes <- nodeOutcome{name: nodeName, newState: newState}
				return nil
			})
		}

		waitErr := group.Wait()
		close(outcomes)
		for oc := range outcomes {
			state[oc.name] = oc.newState
			resultMu.Lock()
			result.ModelsExecuted = append(result.ModelsExecuted, oc.name)
			resultMu.Unlock()
		}

		if waitErr != nil {
			result.Success = false
			result.Errors = append(result.Errors, waitErr.Error())
			_ = saveState(targetDir, state)
			_ = writeRunResults(targetDir, *result)
			return result, waitErr
		}
	}

	if err := saveState(targetDir, state); err != nil {
		return nil, err
	}
	if err := writeRunResults(targetDir, *result); err != nil {
		return nil, err
	}

	return result, nil
}

// runNode executes the ten-step per-node sequence of §4.10 and returns the
// ModelExecutionState to persist for this node.
func (o *Orchestrator) runNode(
	ctx context.Context,
	node *manifest.Node,
	targetDir, layerName string,
	prior manifest.ModelExecutionState,
	policySet governance.PolicySet,
	piiPatterns []config.CompiledPIIPattern,
) (manifest.ModelExecutionState, error) {
	start := time.Now()
	if o.Logger != nil {
		o.Logger.LogNodeStart(ctx, "", node.Name, layerName)
	}

	rendered := o.Template.Render(node.RawTemplateBody)
	compiled := quoter.Quote(rendered)

	if err := fs.WriteAtomic(compiledPath(targetDir, layerName, node.Name), []byte(compiled), 0o644); err != nil {
		return prior, o.finishNode(ctx, node, start, prior, err)
	}

	secured := compiled
	if !o.Connector.SupportsPlanGovernance() {
		secured = governance.RewriteSQL(compiled, node)
	}
	if err := fs.WriteAtomic(runPath(targetDir, layerName, node.Name), []byte(secured), 0o644); err != nil {
		return prior, o.finishNode(ctx, node, start, prior, err)
	}

	strict := o.Config.Project.StrictMode
	if strict && node.SecurityLevel != manifest.SecurityPublic {
		if err := preflightLint(ctx, o.Connector, node, compiled, piiPatterns); err != nil {
			return prior, o.finishNode(ctx, node, start, prior, err)
		}
	}

	matResult, err := materialize.Materialize(ctx, o.Connector, node.Name, secured, node.Config)
	if err != nil {
		return prior, o.finishNode(ctx, node, start, prior, err)
	}
	if matResult.Warning != "" && o.Logger != nil {
		o.Logger.Warn(ctx, matResult.Warning, map[string]interface{}{"node": node.Name})
	}

	valResult, unknownTests, err := validate.Validate(ctx, o.Connector, node)
	if err != nil {
		return prior, o.finishNode(ctx, node, start, prior, err)
	}
	for _, w := range unknownTests {
		if o.Logger != nil {
			o.Logger.Warn(ctx, w.String(), map[string]interface{}{"node": node.Name})
		}
	}
	if len(valResult.Undocumented) > 0 {
		if err := o.reconcileSchema(ctx, node, valResult.Undocumented); err != nil {
			return prior, o.finishNode(ctx, node, start, prior, err)
		}
	}

	rowCount, err := o.Connector.QueryScalar(ctx, fmt.Sprintf(`SELECT count(*) FROM %q`, node.Name))
	if err != nil {
		return prior, o.finishNode(ctx, node, start, prior, err)
	}

	newMetrics := make(map[string]manifest.MetricState, len(prior.MLMetrics))
	for k, v := range prior.MLMetrics {
		newMetrics[k] = v
	}
	outcome, err := postFlight(ctx, o.Connector, node, prior, rowCount,
		o.Config.Quality.RowCountDeviationThreshold, o.Config.Quality.ZScoreThreshold, strict, newMetrics)
	if err != nil {
		return prior, o.finishNode(ctx, node, start, prior, err)
	}
	if o.Logger != nil {
		for _, msg := range outcome.metrics {
			o.Logger.LogBypass(ctx, node.Name, "compliance", msg)
		}
		for _, msg := range outcome.warn {
			o.Logger.Warn(ctx, msg, map[string]interface{}{"node": node.Name})
		}
	}

	newState := manifest.ModelExecutionState{LastRunAt: time.Now(), RowCount: rowCount, MLMetrics: newMetrics}

	if o.Metrics != nil {
		o.Metrics.RecordNodeExecuted(node.Name, layerName, time.Since(start))
	}
	if o.Logger != nil {
		o.Logger.LogNodeComplete(ctx, "", node.Name, time.Since(start), rowCount, nil)
	}

	return newState, nil
}

func (o *Orchestrator) finishNode(ctx context.Context, node *manifest.Node, start time.Time, prior manifest.ModelExecutionState, err error) error {
	if o.Logger != nil {
		o.Logger.LogNodeComplete(ctx, "", node.Name, time.Since(start), prior.RowCount, err)
	}
	if o.Metrics != nil {
		o.Metrics.RecordNodeFailed(node.Name)
	}
	return err
}

// reconcileSchema implements §4.10 step 7's either/or: patch the existing
// contract when one is declared for this node, or create a fresh v1
// contract (seeded from the undocumented columns) when none exists yet.
func (o *Orchestrator) reconcileSchema(ctx context.Context, node *manifest.Node, undocumented []string) error {
	if node.SchemaPath != "" {
		return o.Schema.PatchUndocumentedColumns(ctx, node, undocumented)
	}

	seeded := *node
	seeded.Columns = make([]manifest.Column, 0, len(undocumented))
	for _, name := range undocumented {
		seeded.Columns = append(seeded.Columns, manifest.Column{Name: name})
	}
	return o.Schema.CreateVersionedContract(ctx, &seeded)
}

// buildGlobalPolicySet merges every node's column policies into one
// PolicySet, used for the once-per-run register_governance call (§4.10).
// Later nodes win on name collisions; in practice column names are unique
// per governance scope so this is not expected to matter.
func buildGlobalPolicySet(m *manifest.Manifest, salt string) governance.PolicySet {
	merged := governance.PolicySet{Columns: make(map[string]manifest.PolicyType), Salt: salt}
	for _, name := range m.SortedNodeNames() {
		ps := governance.BuildPolicySet(m.Nodes[name], salt)
		for col, policy := range ps.Columns {
			merged.Columns[col] = policy
		}
	}
	return merged
}
