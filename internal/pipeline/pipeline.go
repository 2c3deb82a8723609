// Package pipeline runs the resolver over a tree of dataflow snapshots:
// discover, validate, decode, resolve, analyse, check and report.
package pipeline

// Every snapshot is resolved on its own; files share nothing but the
// configuration, so they are processed in parallel. Stage failures of
// one file are reported against that file and do not stop the others.

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/vlog-dataflow/internal/config"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/dataflow"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/depgraph"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/facts"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/metrics"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/optimizer"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/policy"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/resolver"
	"github.com/robert-at-pretension-io/vlog-dataflow/internal/validator"
)

// SnapshotSuffix marks the files picked up by a directory scan.
const SnapshotSuffix = ".dataflow.json"

// Stages a file can fail in.
const (
	StageRead       = "read"
	StageValidate   = "validate"
	StageDecode     = "decode"
	StageReferences = "references"
	StageResolve    = "resolve"
	StageFacts      = "facts"
	StageWrite      = "write"
)

type Pipeline struct {
	// Configuration loaded from vlog_dataflow.json
	Config *config.Config

	// Defines are NAME=LITERAL overrides layered over Config.Overrides
	Defines map[string]string

	// Verbose output
	Verbose bool

	// JSON output mode
	JSONOutput bool

	// Timing output (JSONL)
	Timing     bool
	TimingPath string

	// MetricsPath receives the Prometheus text exposition of the run
	MetricsPath string

	// ResolvedDir receives <name>.resolved.json for every snapshot
	ResolvedDir string

	Log *logrus.Logger
	Out io.Writer
}

// Report is the structured result of a run.
type Report struct {
	Files      []FileReport       `json:"files"`
	Violations []policy.Violation `json:"violations"`
	Summary    policy.Summary     `json:"summary"`
	Changes    *ChangeSummary     `json:"changes,omitempty"`
	Errors     []FileError        `json:"errors,omitempty"`

	// Tables are the merged fact tables of every resolved file.
	Tables facts.Tables `json:"-"`

	// Delta against the tables of the previous cached run.
	Delta *facts.Delta `json:"-"`
}

// FileReport summarizes one resolved snapshot.
type FileReport struct {
	Path       string            `json:"path"`
	Terms      int               `json:"terms"`
	Binds      int               `json:"binds"`
	Constants  map[string]string `json:"constants"`
	Unresolved []string          `json:"unresolved,omitempty"`
	Cycles     [][]string        `json:"cycles,omitempty"`
	Cached     bool              `json:"cached"`
}

// ChangeSummary counts fact rows that changed since the previous run.
type ChangeSummary struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// FileError is a stage failure of one snapshot.
type FileError struct {
	File    string `json:"file"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (e FileError) Error() string {
	return e.File + ": " + e.Stage + ": " + e.Message
}

func New() *Pipeline {
	return &Pipeline{}
}

func NewWithConfig(cfg *config.Config) *Pipeline {
	return &Pipeline{Config: cfg}
}

func (p *Pipeline) logger() *logrus.Logger {
	if p.Log == nil {
		p.Log = logrus.New()
		p.Log.SetOutput(os.Stderr)
		if p.Verbose {
			p.Log.SetLevel(logrus.DebugLevel)
		}
	}
	return p.Log
}

func (p *Pipeline) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

func (p *Pipeline) loadConfig(rootPath string) error {
	if p.Config != nil {
		return nil
	}
	cfg, err := config.Load(rootPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	p.Config = cfg
	return nil
}

// Run analyzes rootPath and prints the report. Stage failures and other
// non-fatal problems are returned together after the report is written.
func (p *Pipeline) Run(rootPath string) error {
	report, err := p.Analyze(rootPath)
	if report == nil {
		return err
	}
	if p.JSONOutput {
		if werr := report.WriteJSON(p.out()); werr != nil {
			return errors.Wrap(werr, "failed to encode JSON output")
		}
	} else {
		report.WriteText(p.out())
	}
	return err
}

// Analyze resolves every snapshot under rootPath and evaluates the checks
// over the merged fact tables. The report is returned even when some
// files failed; the error then lists every failure.
func (p *Pipeline) Analyze(rootPath string) (*Report, error) {
	runStart := time.Now()
	log := p.logger()
	pipelineErrs := make([]error, 0)
	recordPipelineErr := func(err error) {
		pipelineErrs = append(pipelineErrs, err)
	}

	if err := p.loadConfig(rootPath); err != nil {
		return nil, err
	}
	timing := newTimingRecorder(runStart, p.resolveTimingPath(rootPath))
	if err := timing.Err(); err != nil {
		recordPipelineErr(errors.Wrap(err, "timing output disabled"))
	}
	defer timing.Close()

	// 1. Find snapshots
	stepStart := time.Now()
	files, err := p.findSnapshots(rootPath)
	if err != nil {
		return nil, errors.Wrap(err, "scanning files")
	}
	log.WithField("files", len(files)).Debug("snapshots found")
	timing.RecordStage("scan", stepStart, time.Since(stepStart), "")

	env, err := p.newRunEnv(rootPath, p.Config.CacheEnabled())
	if err != nil {
		return nil, err
	}
	defer env.close()
	if env.cacheErr != nil {
		recordPipelineErr(env.cacheErr)
	}
	env.names = resolvedNames(rootPath, files)

	// 2. Resolve each snapshot
	stepStart = time.Now()
	results := make([]fileResult, len(files))
	sem := make(chan struct{}, p.parallelism())
	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, f string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = p.processFile(f, env, timing)
		}(i, file)
	}
	wg.Wait()
	timing.RecordStage("resolve", stepStart, time.Since(stepStart), "")

	report := &Report{Files: []FileReport{}, Violations: []policy.Violation{}}
	var perFile []facts.Tables
	changed := make(map[string]bool)
	for _, r := range results {
		for _, err := range r.warnings {
			recordPipelineErr(err)
		}
		if r.err != nil {
			report.Errors = append(report.Errors, *r.err)
			recordPipelineErr(*r.err)
			continue
		}
		report.Files = append(report.Files, r.report)
		perFile = append(perFile, r.tables)
		if !r.report.Cached {
			changed[r.report.Path] = true
		}
	}
	report.Tables = facts.Merge(perFile...)

	// 3. Compare with the previous run
	if env.cache != nil {
		if prev, ok, err := env.cache.LoadTables(); err != nil {
			recordPipelineErr(errors.Wrap(err, "fact tables cache load failed"))
		} else if ok {
			delta := facts.ComputeDelta(prev, report.Tables)
			if len(changed) > 0 {
				delta = facts.FilterDeltaByFiles(delta, changed)
			}
			report.Delta = &delta
			report.Changes = &ChangeSummary{Added: delta.Added.RowCount(), Removed: delta.Removed.RowCount()}
		}
		if err := env.cache.SaveTables(report.Tables); err != nil {
			recordPipelineErr(errors.Wrap(err, "fact tables cache save failed"))
		}
	}

	// 4. Checks
	stepStart = time.Now()
	engine, err := policy.New(p.Config.Policy.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "initialize policy engine")
	}
	checked := facts.FilterTablesByNames(report.Tables, func(name string) bool {
		return !p.Config.ShouldIgnoreSignal(name)
	})
	result, err := engine.Evaluate(context.Background(), policy.Input{Tables: checked, Passes: resolver.Passes})
	if err != nil {
		return nil, errors.Wrap(err, "policy evaluation failed")
	}
	result.ApplyConfig(p.Config)
	report.Violations = result.Violations
	report.Summary = result.Summary
	timing.RecordStage("policy", stepStart, time.Since(stepStart), "")

	if p.MetricsPath != "" {
		if err := writeMetrics(p.MetricsPath, env.collector); err != nil {
			recordPipelineErr(err)
		}
	}

	log.WithFields(logrus.Fields{
		"files":      len(report.Files),
		"errors":     len(report.Errors),
		"violations": report.Summary.TotalViolations,
		"elapsed":    formatDuration(time.Since(runStart)),
	}).Debug("run complete")
	timing.RecordStage("total", runStart, time.Since(runStart), "")

	if len(pipelineErrs) > 0 {
		return report, errors.Errorf("pipeline errors:\n%s", formatPipelineErrors(pipelineErrs))
	}
	return report, nil
}

func formatPipelineErrors(errs []error) string {
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (p *Pipeline) parallelism() int {
	if n := p.Config.Analysis.MaxParallelFiles; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// findSnapshots returns rootPath itself when it is a file, else the
// configured inputs, else every *.dataflow.json below rootPath.
func (p *Pipeline) findSnapshots(rootPath string) ([]string, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{rootPath}, nil
	}

	files, err := p.Config.ResolveInputs(rootPath)
	if err != nil {
		return nil, err
	}
	if len(files) > 0 {
		return files, nil
	}

	err = filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && strings.HasPrefix(info.Name(), ".") && path != rootPath {
			return filepath.SkipDir
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), SnapshotSuffix) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// runEnv is shared by every file of one run.
type runEnv struct {
	snapshots *validator.Validator
	tables    *validator.Validator
	overrides map[string]*dataflow.EvalValue
	cache     *resolutionCache
	cacheErr  error
	collector *metrics.Collector

	// resolved output names by snapshot path
	names map[string]string
}

func (e *runEnv) resolvedName(path string) string {
	if name, ok := e.names[path]; ok {
		return name
	}
	return snapshotStem(filepath.Base(path))
}

func (p *Pipeline) newRunEnv(rootPath string, useCache bool) (*runEnv, error) {
	snapshots, err := validator.New()
	if err != nil {
		return nil, errors.Wrap(err, "snapshot validator")
	}
	tables, err := validator.NewFactsValidator()
	if err != nil {
		return nil, errors.Wrap(err, "facts validator")
	}
	overrides, err := ParseOverrides(p.overrideTexts(), p.Config.Optimizer.DefaultWidth)
	if err != nil {
		return nil, err
	}
	env := &runEnv{
		snapshots: snapshots,
		tables:    tables,
		overrides: overrides,
		collector: metrics.New(),
	}
	if useCache {
		dir := resolveCacheDir(rootPath, p.Config.Analysis.Cache.Dir)
		cache, err := openCache(dir, p.fingerprint())
		if err != nil {
			env.cacheErr = errors.Wrap(err, "cache disabled")
		} else {
			env.cache = cache
		}
	}
	return env, nil
}

func (e *runEnv) close() {
	if e.cache != nil {
		_ = e.cache.Close()
	}
}

func (p *Pipeline) overrideTexts() map[string]string {
	out := make(map[string]string, len(p.Config.Overrides)+len(p.Defines))
	for name, v := range p.Config.Overrides {
		out[name] = v
	}
	for name, v := range p.Defines {
		out[name] = v
	}
	return out
}

// fingerprint covers the command line overrides as well as the file
// configuration.
func (p *Pipeline) fingerprint() string {
	cfg := *p.Config
	cfg.Overrides = p.overrideTexts()
	return cfg.Fingerprint()
}

type fileResult struct {
	report   FileReport
	tables   facts.Tables
	err      *FileError
	warnings []error
}

func (p *Pipeline) processFile(path string, env *runEnv, timing *timingRecorder) fileResult {
	start := time.Now()
	log := p.logger().WithField("file", path)
	fail := func(stage string, err error) fileResult {
		env.collector.ObserveResolution(metrics.StatusFailed, 0, time.Since(start))
		timing.RecordFile("resolve", path, "failed", start, time.Since(start))
		log.WithField("stage", stage).WithError(err).Debug("snapshot failed")
		return fileResult{err: &FileError{File: path, Stage: stage, Message: err.Error()}}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(StageRead, err)
	}
	hash := hashBytes(data)

	var out fileResult
	if env.cache != nil {
		entry, ok, err := env.cache.Get(path, hash)
		if err != nil {
			out.warnings = append(out.warnings, errors.Wrapf(err, "cache read failed for %s", path))
		} else if ok && (p.ResolvedDir == "" || len(entry.Resolved) > 0) {
			if p.ResolvedDir != "" {
				if err := writeResolved(p.ResolvedDir, env.resolvedName(path), entry.Resolved); err != nil {
					return fail(StageWrite, err)
				}
			}
			entry.Report.Cached = true
			env.collector.ObserveResolution(metrics.StatusCached, len(entry.Report.Constants), 0)
			timing.RecordFile("resolve", path, "cache_hit", start, time.Since(start))
			out.report, out.tables = entry.Report, entry.Tables
			return out
		}
	}

	snap, res, stage, err := p.resolveSnapshot(data, env, log)
	if err != nil {
		return fail(stage, err)
	}

	graph := depgraph.Build(snap.Terms, snap.Binds)
	tables := facts.BuildTables(path, res, graph, resolver.Passes)
	if err := env.tables.Validate(tables); err != nil {
		return fail(StageFacts, err)
	}
	resolved, err := dataflow.EncodeSnapshot(res.Terms, res.Binds)
	if err != nil {
		return fail(StageWrite, err)
	}
	if p.ResolvedDir != "" {
		if err := writeResolved(p.ResolvedDir, env.resolvedName(path), resolved); err != nil {
			return fail(StageWrite, err)
		}
	}

	report := FileReport{
		Path:      path,
		Terms:     res.Terms.Len(),
		Binds:     res.Binds.Count(),
		Constants: make(map[string]string, len(tables.Constants)),
		Cycles:    graph.Cycles(),
	}
	for _, c := range tables.Constants {
		report.Constants[c.Name] = c.Value
	}
	for _, u := range tables.Unresolved {
		report.Unresolved = append(report.Unresolved, u.Name)
	}

	if env.cache != nil {
		if err := env.cache.Put(path, hash, report, tables, resolved); err != nil {
			out.warnings = append(out.warnings, errors.Wrapf(err, "cache write failed for %s", path))
		}
	}
	elapsed := time.Since(start)
	env.collector.ObserveResolution(metrics.StatusResolved, len(res.Constants), elapsed)
	timing.RecordFile("resolve", path, "resolved", start, elapsed)
	log.WithFields(logrus.Fields{
		"constants":  len(res.Constants),
		"unresolved": len(report.Unresolved),
	}).Debug("snapshot resolved")

	out.report, out.tables = report, tables
	return out
}

// resolveSnapshot validates, decodes and resolves one snapshot. Overrides
// apply only to names the snapshot declares.
func (p *Pipeline) resolveSnapshot(data []byte, env *runEnv, log *logrus.Entry) (*dataflow.Snapshot, *resolver.Result, string, error) {
	if err := env.snapshots.ValidateJSON(data); err != nil {
		return nil, nil, StageValidate, err
	}
	snap, err := dataflow.DecodeSnapshot(data)
	if err != nil {
		return nil, nil, StageDecode, err
	}
	if err := dataflow.CheckReferences(snap.Terms, snap.Binds); err != nil {
		return nil, nil, StageReferences, err
	}

	overrides := make(map[string]*dataflow.EvalValue)
	for name, v := range env.overrides {
		if snap.Terms.Has(name) {
			overrides[name] = v
		}
	}
	res, err := resolver.New(snap.Terms, snap.Binds, p.optimizerOptions(log, env.collector, overrides)...).Resolve()
	if err != nil {
		return nil, nil, StageResolve, err
	}
	return snap, res, "", nil
}

func (p *Pipeline) optimizerOptions(log *logrus.Entry, obs optimizer.Observer, constants map[string]*dataflow.EvalValue) []optimizer.Option {
	return []optimizer.Option{
		optimizer.WithDefaultWidth(p.Config.Optimizer.DefaultWidth),
		optimizer.WithPasses(p.Config.Optimizer.Passes),
		optimizer.WithConstants(constants),
		optimizer.WithLogger(log),
		optimizer.WithObserver(obs),
	}
}

// Fold resolves the snapshot at path and optimizes the first assignment
// of name against the resolved constants.
func (p *Pipeline) Fold(path, name string) (dataflow.Node, error) {
	if err := p.loadConfig(path); err != nil {
		return nil, err
	}
	env, err := p.newRunEnv(path, false)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	log := p.logger().WithField("file", path)
	_, res, stage, err := p.resolveSnapshot(data, env, log)
	if err != nil {
		return nil, errors.Wrap(err, stage)
	}
	b, ok := res.Binds.First(name)
	if !ok {
		return nil, dataflow.NewDefinitionError("bind", name)
	}
	opt := optimizer.New(res.Terms, p.optimizerOptions(log, env.collector, res.Constants)...)
	return opt.Optimize(b.Tree)
}

// writeResolved stores one resolved snapshot as <name>.resolved.json.
func writeResolved(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name+".resolved.json"), data, 0o644)
}

// resolvedNames picks the output name of every snapshot. A file keeps its
// base name unless another snapshot shares it; those are named after their
// path below root with separators flattened to "__".
func resolvedNames(rootPath string, files []string) map[string]string {
	root := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		root = filepath.Dir(rootPath)
	}

	seen := make(map[string]int, len(files))
	for _, f := range files {
		seen[snapshotStem(filepath.Base(f))]++
	}
	names := make(map[string]string, len(files))
	for _, f := range files {
		stem := snapshotStem(filepath.Base(f))
		if seen[stem] > 1 {
			rel, err := filepath.Rel(root, f)
			if err != nil || strings.HasPrefix(rel, "..") {
				rel = strings.TrimPrefix(filepath.ToSlash(filepath.Clean(f)), "/")
			}
			stem = strings.ReplaceAll(snapshotStem(filepath.ToSlash(rel)), "/", "__")
		}
		names[f] = stem
	}
	return names
}

func snapshotStem(name string) string {
	name = strings.TrimSuffix(name, SnapshotSuffix)
	return strings.TrimSuffix(name, ".json")
}

func writeMetrics(path string, c *metrics.Collector) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "metrics output")
	}
	defer f.Close()
	return c.WriteText(f)
}
