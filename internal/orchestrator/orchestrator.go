// Package orchestrator translates skill lifecycle intents into queued CLI
// operations, fans out a typed event stream, and verifies results after the
// fact.
//
// A "did the subprocess exit 0" check and a "is the result structurally
// correct" check run through different paths on purpose: the CLI can exit
// cleanly and still leave a torn install behind (killed mid-write after its
// own exit, partial writes not reflected in the exit code). Verification
// never fails a completed job retroactively; it surfaces through the next
// state scan, optionally enqueueing a repair.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finchley/skilldock/internal/core"
	"github.com/finchley/skilldock/internal/executor"
	"github.com/finchley/skilldock/internal/queue"
)

// ErrCLIUnavailable is returned by every intent while the skills CLI is
// missing or below the minimum version. Nothing is queued.
var ErrCLIUnavailable = errors.New("skills CLI unavailable")

// skillManifest is the file whose presence verification checks.
const skillManifest = "SKILL.md"

// Config wires an Orchestrator.
type Config struct {
	Executor      executor.Executor
	Agents        []core.AgentDef
	WorkspaceRoot string
	// AutoRepair enqueues one repair per (skill, scope) when verification
	// finds a torn install.
	AutoRepair bool
	// RequestScan pokes the reconciler after a verification pass so the
	// authoritative snapshot reflects what verification saw. Optional.
	RequestScan func()
	Log         *zap.Logger
}

// Orchestrator coordinates the queue, the CLI executor and the event stream.
type Orchestrator struct {
	log  *zap.Logger
	exec executor.Executor
	cfg  Config

	q      *queue.Queue
	events *emitter

	mu              sync.Mutex
	healthy         bool
	batches         map[string]*batchState
	repairAttempted map[string]bool

	verifyWG sync.WaitGroup
}

type batchState struct {
	remaining    int
	total        int
	failedSkills []string
}

// jobSpec is what a queued job needs beyond its queue record: the CLI
// argument list and the verification targets.
type jobSpec struct {
	meta *Metadata
	args []string
	// verify resolves the absolute skill directories to check after success.
	// Resolution happens when the job completes, not when it is enqueued: a
	// job queued behind an install of the same skill must see the
	// directories that install created.
	verify func() []string
}

// New creates an Orchestrator with its own operation queue.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		log:             cfg.Log.Named("orchestrator"),
		exec:            cfg.Executor,
		cfg:             cfg,
		events:          newEmitter(),
		batches:         make(map[string]*batchState),
		repairAttempted: make(map[string]bool),
	}
	o.q = queue.New(cfg.Log, queue.Hooks{
		OnStart:    o.onJobStart,
		OnTerminal: o.onJobTerminal,
	})
	return o
}

// Subscribe registers an event handler. Multiple independent subscribers are
// supported; dispose the returned subscription to stop receiving events.
func (o *Orchestrator) Subscribe(fn func(Event)) *Subscription {
	return o.events.subscribe(fn)
}

// SetCLIHealthy gates whether new operations may be enqueued at all. While
// unhealthy, every intent fails fast with ErrCLIUnavailable instead of
// queueing jobs that are guaranteed to fail.
func (o *Orchestrator) SetCLIHealthy(healthy bool) {
	o.mu.Lock()
	o.healthy = healthy
	o.mu.Unlock()
}

// Cancel cancels a queued or running operation. Idempotent.
func (o *Orchestrator) Cancel(operationID string) {
	o.q.Cancel(operationID)
}

// Close drains nothing: the running job is killed, pending jobs are
// cancelled, and in-flight verification passes are awaited. Call Settle
// first when queued work should finish instead of being cancelled.
func (o *Orchestrator) Close() {
	o.q.Close()
	o.verifyWG.Wait()
}

// Settle blocks until the queue is idle and every verification pass has
// finished, including repair work a verification enqueued along the way. A
// repair's completion schedules a verification of its own, so the rounds
// repeat until one adds no work.
func (o *Orchestrator) Settle() {
	for {
		o.verifyWG.Wait()
		if o.q.Idle() {
			return
		}
		o.q.Wait()
	}
}

// InstallMany installs each skill for the given agents. A scope of "all"
// expands into one single-scoped job per (skill, scope), keeping the queue's
// unit of work single-scoped so verification always checks one scope at a
// time. source tags the batch for presentation ("registry", "catalog-view").
func (o *Orchestrator) InstallMany(names []string, scope core.ScopeSelector, agents []string, source string) error {
	return o.enqueueScoped(core.OpInstall, names, scope, agents, source)
}

// RemoveMany removes each skill from the given agents, splitting "all" into
// per-scope jobs like InstallMany.
func (o *Orchestrator) RemoveMany(names []string, scope core.ScopeSelector, agents []string) error {
	return o.enqueueScoped(core.OpRemove, names, scope, agents, "")
}

// UpdateMany updates each skill. The CLI determines which agents and scopes
// need updating, so jobs carry neither.
func (o *Orchestrator) UpdateMany(names []string) error {
	if err := o.precheck(names); err != nil {
		return err
	}

	batchID := uuid.NewString()
	o.registerBatch(batchID, len(names))

	for _, name := range names {
		meta := &Metadata{
			BatchID:    batchID,
			BatchSize:  len(names),
			SkillNames: names,
		}
		spec := &jobSpec{
			meta: meta,
			args: []string{"update", name},
			// An update touches whatever installs exist; verify both scopes.
			verify: func() []string {
				dirs := o.installDirs(name, core.ScopeLocal, nil, true)
				return append(dirs, o.installDirs(name, core.ScopeGlobal, nil, true)...)
			},
		}
		o.enqueueJob(core.OpUpdate, name, spec)
	}
	return nil
}

// RepairMany re-installs already-known-corrupted installs. Unlike install it
// takes one explicit scope, because repair targets a concrete torn install.
func (o *Orchestrator) RepairMany(names []string, scope core.Scope, agents []string) error {
	if err := o.precheck(names); err != nil {
		return err
	}

	batchID := uuid.NewString()
	o.registerBatch(batchID, len(names))

	for _, name := range names {
		meta := &Metadata{
			BatchID:    batchID,
			BatchSize:  len(names),
			SkillNames: names,
			Scope:      scope,
			Agents:     agents,
		}
		o.enqueueJob(core.OpRepair, name, &jobSpec{
			meta:   meta,
			args:   o.buildArgs("repair", name, scope, agents),
			verify: func() []string { return o.installDirs(name, scope, agents, false) },
		})
	}
	return nil
}

// enqueueScoped expands the scope selector and enqueues one job per
// (skill, scope) under a single batch.
func (o *Orchestrator) enqueueScoped(kind core.OperationKind, names []string, scope core.ScopeSelector, agents []string, source string) error {
	if err := o.precheck(names); err != nil {
		return err
	}
	scopes := scope.Scopes()
	if len(scopes) == 0 {
		return fmt.Errorf("invalid scope %q", scope)
	}

	batchID := uuid.NewString()
	total := len(names) * len(scopes)
	o.registerBatch(batchID, total)

	verb := "install"
	if kind == core.OpRemove {
		verb = "uninstall"
	}

	for _, name := range names {
		for _, s := range scopes {
			meta := &Metadata{
				BatchID:    batchID,
				BatchSize:  total,
				SkillNames: names,
				Scope:      s,
				Agents:     agents,
				Source:     source,
			}
			spec := &jobSpec{
				meta: meta,
				args: o.buildArgs(verb, name, s, agents),
			}
			if kind == core.OpInstall {
				spec.verify = func() []string { return o.installDirs(name, s, agents, false) }
			}
			o.enqueueJob(kind, name, spec)
		}
	}
	return nil
}

// precheck applies the synchronous failure modes: unhealthy CLI and unsafe
// skill names. Nothing is queued when it errors.
func (o *Orchestrator) precheck(names []string) error {
	o.mu.Lock()
	healthy := o.healthy
	o.mu.Unlock()
	if !healthy {
		return ErrCLIUnavailable
	}
	if len(names) == 0 {
		return errors.New("no skills given")
	}
	for _, name := range names {
		if err := core.ValidateSkillName(name); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) registerBatch(batchID string, total int) {
	o.mu.Lock()
	o.batches[batchID] = &batchState{remaining: total, total: total}
	o.mu.Unlock()
}

// buildArgs assembles the CLI command line for one single-scoped operation.
func (o *Orchestrator) buildArgs(verb, name string, scope core.Scope, agents []string) []string {
	args := []string{verb, name, "--scope", string(scope)}
	for _, a := range agents {
		args = append(args, "--agent", a)
	}
	return args
}

// installDirs lists the skill directories a job targets, for verification.
// With onlyExisting, directories that are absent are skipped (used for
// updates, which may legitimately touch only a subset).
func (o *Orchestrator) installDirs(name string, scope core.Scope, agents []string, onlyExisting bool) []string {
	dirName := core.SanitizeName(name)
	var dirs []string
	for _, agent := range o.targetAgents(agents) {
		var base string
		switch scope {
		case core.ScopeLocal:
			if o.cfg.WorkspaceRoot == "" {
				continue
			}
			base = core.ResolveAgentSkillsDir(agent, o.cfg.WorkspaceRoot)
		case core.ScopeGlobal:
			base = core.ResolveAgentGlobalSkillsDir(agent)
		}
		dir := filepath.Join(base, dirName)
		if onlyExisting && !dirExists(dir) {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs
}

func (o *Orchestrator) targetAgents(names []string) []core.AgentDef {
	if len(names) == 0 {
		return o.cfg.Agents
	}
	resolved, err := core.ResolveAgentsByNames(o.cfg.Agents, names)
	if err != nil {
		// Unknown agent names were already rejected at the command layer;
		// fall back to everything rather than dropping verification.
		return o.cfg.Agents
	}
	return resolved
}

// enqueueJob builds the queue record and submits it.
func (o *Orchestrator) enqueueJob(kind core.OperationKind, name string, spec *jobSpec) {
	id := uuid.NewString()
	job := &queue.Job{
		ID:        id,
		Kind:      kind,
		SkillName: name,
		Meta:      spec,
		Run: func(ctx context.Context) error {
			return o.runCLI(ctx, id, kind, name, spec)
		},
	}
	if err := o.q.Enqueue(job); err != nil {
		// Queue closed during shutdown; report the job as cancelled so the
		// batch still resolves.
		o.onJobTerminal(job, queue.Result{Status: queue.StatusCancelled})
	}
}

// runCLI spawns the skills CLI for one job and relays stdout lines as
// progress events. Returns an error for non-zero exit or spawn failure.
func (o *Orchestrator) runCLI(ctx context.Context, id string, kind core.OperationKind, name string, spec *jobSpec) error {
	proc, err := o.exec.Spawn(ctx, spec.args, executor.Options{
		Dir:         o.cfg.WorkspaceRoot,
		OperationID: id,
	})
	if err != nil {
		return err
	}

	for line := range proc.Output() {
		if line == "" {
			continue
		}
		o.events.emit(Event{
			Type:        EventProgress,
			OperationID: id,
			Operation:   kind,
			SkillName:   name,
			Metadata:    spec.meta,
			Message:     line,
		})
	}

	res := proc.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("exit code %d", res.ExitCode)
		}
		if res.Signal != "" {
			msg = fmt.Sprintf("%s (signal: %s)", msg, res.Signal)
		}
		return fmt.Errorf("skills %s %s: %s", spec.args[0], name, msg)
	}
	return nil
}

func (o *Orchestrator) onJobStart(job *queue.Job) {
	spec := job.Meta.(*jobSpec)
	o.events.emit(Event{
		Type:        EventStarted,
		OperationID: job.ID,
		Operation:   job.Kind,
		SkillName:   job.SkillName,
		Metadata:    spec.meta,
	})
}

// onJobTerminal emits the completion event, settles batch bookkeeping and
// kicks off verification for mutating operations that completed.
func (o *Orchestrator) onJobTerminal(job *queue.Job, res queue.Result) {
	spec := job.Meta.(*jobSpec)

	ev := Event{
		Type:        EventCompleted,
		OperationID: job.ID,
		Operation:   job.Kind,
		SkillName:   job.SkillName,
		Metadata:    spec.meta,
		Success:     res.Status == queue.StatusCompleted,
		Cancelled:   res.Status == queue.StatusCancelled,
	}
	if res.Err != nil {
		ev.ErrorMessage = res.Err.Error()
	}
	o.events.emit(ev)

	o.settleBatch(job.SkillName, spec.meta, res)

	if res.Status == queue.StatusCompleted && spec.verify != nil {
		o.verifyWG.Add(1)
		go o.verify(job.Kind, job.SkillName, spec)
	}
}

// settleBatch decrements the batch counter and emits batchCompleted exactly
// once, on the transition to zero remaining. The batch entry is removed in
// the same critical section, so a re-delivered completion cannot re-fire.
func (o *Orchestrator) settleBatch(skillName string, meta *Metadata, res queue.Result) {
	if meta == nil || meta.BatchID == "" {
		return
	}

	o.mu.Lock()
	b, ok := o.batches[meta.BatchID]
	if !ok {
		o.mu.Unlock()
		return
	}
	if res.Status == queue.StatusFailed && !slices.Contains(b.failedSkills, skillName) {
		// Cancelled jobs do not count as failures.
		b.failedSkills = append(b.failedSkills, skillName)
	}
	b.remaining--
	if b.remaining > 0 {
		o.mu.Unlock()
		return
	}
	delete(o.batches, meta.BatchID)
	result := BatchResult{
		BatchID:      meta.BatchID,
		Total:        b.total,
		Success:      len(b.failedSkills) == 0,
		FailedSkills: b.failedSkills,
	}
	o.mu.Unlock()

	o.events.emit(Event{
		Type:     EventBatchCompleted,
		Metadata: meta,
		Batch:    &result,
	})
}

// verify checks that every targeted install directory carries its manifest.
// A failure never flips the completed job to failed; it logs, pokes the
// reconciler, and (for non-repair operations, at most once per target) may
// enqueue a repair.
func (o *Orchestrator) verify(kind core.OperationKind, name string, spec *jobSpec) {
	defer o.verifyWG.Done()

	var torn bool
	for _, dir := range spec.verify() {
		if dirExists(dir) && !fileExists(filepath.Join(dir, skillManifest)) {
			torn = true
			o.log.Warn("post-install verification found torn install",
				zap.String("skill", name),
				zap.String("dir", dir))
		}
	}

	if torn && o.cfg.AutoRepair && kind != core.OpRepair && spec.meta != nil && spec.meta.Scope != "" {
		key := name + "|" + string(spec.meta.Scope)
		o.mu.Lock()
		attempted := o.repairAttempted[key]
		o.repairAttempted[key] = true
		o.mu.Unlock()
		if !attempted {
			o.log.Info("auto-repairing torn install",
				zap.String("skill", name),
				zap.String("scope", string(spec.meta.Scope)))
			if err := o.RepairMany([]string{name}, spec.meta.Scope, spec.meta.Agents); err != nil {
				o.log.Warn("auto-repair rejected", zap.Error(err))
			}
		}
	}

	if o.cfg.RequestScan != nil {
		o.cfg.RequestScan()
	}
}
