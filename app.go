package tinybuild

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/aappleby/tinybuild/internal/value"
)

// Flags mirrors the CLI table in §6.
type Flags struct {
	RootName string
	Chdir    string
	Jobs     int64
	Verbose  bool
	Quiet    bool
	DryRun   bool
	Debug    bool
	Force    bool
	Shuffle  bool
	Trace    bool
	// Extra holds unrecognized --key=value flags, folded onto the root
	// config's fields by the CLI layer (§6).
	Extra map[string]value.Value
}

// DefaultFlags returns the flag defaults named in §6's CLI table.
func DefaultFlags() *Flags {
	return &Flags{
		RootName: "build.hancho",
		Chdir:    ".",
		Jobs:     int64(runtime.NumCPU()),
		Extra:    map[string]value.Value{},
	}
}

// LoadedModule records a description file loaded during the load phase, for
// the staleness check in §4.7 step 7 ("every loaded description file").
type LoadedModule struct {
	Path    string
	ModTime time.Time
}

// App is the singleton described in §3.4: counters, the pending-task queue,
// the set of declared output paths, the directory stack used during
// the synchronous load phase, the job semaphore, and the loaded-module list.
// It is not a package-level global — callers construct one per build so
// tests can run independent builds concurrently (§9, "must be encapsulated
// for testing").
type App struct {
	Flags *Flags

	// RootDir is the directory containing the root description file,
	// independent of any -C/--chdir the CLI applied before loading it.
	// repo() anchors base_path/repo_path here (SUPPLEMENTED FEATURES).
	RootDir string

	mu            sync.Mutex
	tasksTotal    int
	tasksPass     int
	tasksFail     int
	tasksSkip     int
	tasksCancel   int
	pending       []*Task
	startedCount  int
	allBuildFiles map[string]string // abs path -> owning task description, for DuplicateOutput messages
	dirStack      []string
	loadedModules []LoadedModule

	jobs      *semaphore.Weighted
	jobBudget int64

	rngMu sync.Mutex
	rng   *rand.Rand

	Out *Output
}

// NewApp constructs an App from flags, ready to load a root description
// file into.
func NewApp(flags *Flags) *App {
	if flags == nil {
		flags = DefaultFlags()
	}
	jobs := flags.Jobs
	if jobs <= 0 {
		jobs = int64(runtime.NumCPU())
	}
	return &App{
		Flags:         flags,
		allBuildFiles: make(map[string]string),
		jobs:          semaphore.NewWeighted(jobs),
		jobBudget:     jobs,
		rng:           rand.New(rand.NewSource(1)),
		Out:           NewOutput(),
	}
}

// JobCapacity returns the configured job budget.
func (a *App) JobCapacity() int64 { return a.jobBudget }

// AcquireJobs blocks until n jobs are available, or fails JobOverflow if n
// exceeds the total budget (§5, §7).
func (a *App) AcquireJobs(ctx context.Context, n int64) error {
	if n > a.jobBudget {
		return value.NewError(value.JobOverflow, "task requested %d jobs, budget is %d", n, a.jobBudget)
	}
	if n <= 0 {
		n = 1
	}
	if err := a.jobs.Acquire(ctx, n); err != nil {
		return fmt.Errorf("tinybuild: acquiring %d jobs: %w", n, err)
	}
	return nil
}

// ReleaseJobs releases n jobs back to the budget; always call this on every
// path out of a job-holding section (§4.8, "scoped acquisition").
func (a *App) ReleaseJobs(n int64) {
	if n <= 0 {
		n = 1
	}
	a.jobs.Release(n)
}

// RegisterBuildFile claims an absolute output path for a task, failing
// DuplicateOutput if another task already claimed it (§3.3, §8 "Output
// uniqueness").
func (a *App) RegisterBuildFile(absPath, owner string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.allBuildFiles[absPath]; ok {
		return value.NewError(value.DuplicateOutput, "%s is declared as an output by both %q and %q", absPath, existing, owner)
	}
	a.allBuildFiles[absPath] = owner
	return nil
}

// AddPending appends t to the pending queue and increments tasks_total
// (§4.5 task construction).
func (a *App) AddPending(t *Task) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = append(a.pending, t)
	a.tasksTotal++
}

// DrainPending removes and returns every currently pending task, shuffling
// first when --shuffle is set (§5).
func (a *App) DrainPending() []*Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	batch := a.pending
	a.pending = nil
	if a.Flags != nil && a.Flags.Shuffle {
		a.rngMu.Lock()
		a.rng.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
		a.rngMu.Unlock()
	}
	return batch
}

// HasPending reports whether any tasks are waiting to be drained.
func (a *App) HasPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending) > 0
}

func (a *App) recordResult(kind string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch kind {
	case "pass":
		a.tasksPass++
	case "fail":
		a.tasksFail++
	case "skip":
		a.tasksSkip++
	case "cancel":
		a.tasksCancel++
	}
}

// tasksStarted increments and returns the 1-based index of the task about
// to print its status line, alongside the total declared so far, for the
// "[i/N] desc" line in §4.8.
func (a *App) tasksStarted() (index, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startedCount++
	return a.startedCount, a.tasksTotal
}

// Counters returns a snapshot of the run's accounting (§2 component H).
func (a *App) Counters() (total, pass, fail, skip, cancel int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tasksTotal, a.tasksPass, a.tasksFail, a.tasksSkip, a.tasksCancel
}

// PushDir records a chdir for the loader's directory stack (§4.4). Only
// mutated during the synchronous load phase (§5, "Shared resources").
func (a *App) PushDir(dir string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dirStack = append(a.dirStack, dir)
}

// PopDir pops the most recently pushed directory.
func (a *App) PopDir() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.dirStack) == 0 {
		return "", false
	}
	n := len(a.dirStack) - 1
	dir := a.dirStack[n]
	a.dirStack = a.dirStack[:n]
	return dir, true
}

// RecordLoadedModule appends a loaded description file, used by the
// staleness oracle (§4.7 step 7).
func (a *App) RecordLoadedModule(m LoadedModule) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadedModules = append(a.loadedModules, m)
}

// LoadedModules returns a snapshot of every description file loaded so far.
func (a *App) LoadedModules() []LoadedModule {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]LoadedModule, len(a.loadedModules))
	copy(out, a.loadedModules)
	return out
}
