// Package orchestrator downloads, verifies and installs planned versions with per
// project admission control, a global worker budget and transport retries.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"resource-downloader/cache"
	"resource-downloader/catalog"
	"resource-downloader/planner"
	"resource-downloader/progress"
	"resource-downloader/resource"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Task is one install request.
type Task struct {
	ProjectID string
	Kind      resource.Kind
	Title     string
	Version   resource.VersionRecord
	// Pin marks the resulting entry as pinned. An existing pin is always kept.
	Pin bool
}

// TaskFor builds the task for an executable plan entry. Entries the user pinned to a
// version produce pinned installs.
func TaskFor(e planner.Entry) Task {
	return Task{
		ProjectID: e.ProjectID,
		Kind:      e.Kind,
		Title:     e.Title,
		Version:   *e.Version,
		Pin:       e.UserPin() != "",
	}
}

// Status is the final state of a task.
type Status int

const (
	StatusInstalled Status = iota
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusInstalled:
		return "installed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Outcome is the result of one submitted task.
type Outcome struct {
	ProjectID string
	VersionID string
	Path      string
	Status    Status
	Err       error
	Attempts  int
	// Coalesced is set when the request joined a download already in flight and did no
	// work of its own. Its Status mirrors the owning request's, so counting installs
	// means counting outcomes with Coalesced unset.
	Coalesced bool
}

// HistoryEntry describes a replaced version.
type HistoryEntry struct {
	ProjectID     string
	VersionID     string
	VersionNumber string
	FileName      string
	ArchivePath   string
}

// History records replaced versions so they can be rolled back.
type History interface {
	RecordReplaced(ctx context.Context, entry HistoryEntry) error
}

// Options tune an Orchestrator.
type Options struct {
	// Root is the game directory; files go to Root/<kind dir>.
	Root        string
	Workers     int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// KeepOldVersions archives replaced files under <kind dir>/versions instead of
	// deleting them.
	KeepOldVersions bool
	History         History
	Sink            progress.Sink
	Log             *zap.SugaredLogger
}

type flight struct {
	task      Task
	cancel    context.CancelFunc
	done      chan struct{}
	committed bool
	dest      string
	outcome   Outcome
}

// Orchestrator executes install tasks. It must be closed to release its workers.
type Orchestrator struct {
	client catalog.Client
	cache  *cache.Cache
	opts   Options
	log    *zap.SugaredLogger
	sem    *semaphore.Weighted

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	flights map[string]*flight
	// claims maps destination paths of committed flights to their project.
	claims map[string]string
}

// New creates an Orchestrator writing through c.
func New(client catalog.Client, c *cache.Cache, opts Options) *Orchestrator {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.BaseBackoff {
		opts.MaxBackoff = opts.BaseBackoff * 8
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		client:  client,
		cache:   c,
		opts:    opts,
		log:     opts.Log,
		sem:     semaphore.NewWeighted(int64(opts.Workers)),
		ctx:     ctx,
		stop:    stop,
		flights: make(map[string]*flight),
		claims:  make(map[string]string),
	}
}

// Execute submits every executable entry of plan and streams their outcomes. The
// channel is closed once all outcomes were delivered; callers must drain it.
func (o *Orchestrator) Execute(ctx context.Context, plan planner.Plan) <-chan Outcome {
	out := make(chan Outcome)
	var wg sync.WaitGroup
	for _, e := range plan.Entries {
		if !e.Executable() {
			continue
		}
		ch := o.Submit(ctx, TaskFor(e))
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- <-ch
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Submit schedules task and returns a channel that receives exactly one outcome.
//
// A request for a project with a download in flight for the same version joins that
// download. A request for a different version waits for it to finish first.
func (o *Orchestrator) Submit(ctx context.Context, task Task) <-chan Outcome {
	out := make(chan Outcome, 1)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		out <- Outcome{ProjectID: task.ProjectID, VersionID: task.Version.ID, Status: StatusCancelled, Err: ErrClosed}
		return out
	}

	o.wg.Add(1)
	if f, busy := o.flights[task.ProjectID]; busy {
		if f.task.Version.ID == task.Version.ID {
			go o.attach(ctx, f, task, out)
		} else {
			go o.queue(ctx, f, task, out)
		}
		return out
	}

	fctx, cancel := context.WithCancel(o.ctx)
	stopAfter := context.AfterFunc(ctx, cancel)
	f := &flight{task: task, cancel: cancel, done: make(chan struct{})}
	o.flights[task.ProjectID] = f
	go func() {
		defer o.wg.Done()
		oc := o.install(fctx, f)
		stopAfter()
		cancel()

		o.mu.Lock()
		delete(o.flights, task.ProjectID)
		if f.dest != "" {
			delete(o.claims, f.dest)
		}
		f.outcome = oc
		o.mu.Unlock()
		close(f.done)
		out <- oc
	}()
	return out
}

func (o *Orchestrator) attach(ctx context.Context, f *flight, task Task, out chan<- Outcome) {
	defer o.wg.Done()
	o.log.Debugw("Joining in-flight download", zap.String("project_id", task.ProjectID))
	select {
	case <-f.done:
		oc := f.outcome
		oc.Coalesced = true
		oc.Attempts = 0
		out <- oc
	case <-ctx.Done():
		out <- Outcome{ProjectID: task.ProjectID, VersionID: task.Version.ID, Status: StatusCancelled, Err: ErrCancelled, Coalesced: true}
	}
}

func (o *Orchestrator) queue(ctx context.Context, f *flight, task Task, out chan<- Outcome) {
	defer o.wg.Done()
	select {
	case <-f.done:
		out <- <-o.Submit(ctx, task)
	case <-ctx.Done():
		out <- Outcome{ProjectID: task.ProjectID, VersionID: task.Version.ID, Status: StatusCancelled, Err: ErrCancelled}
	}
}

// Cancel stops the in-flight task for projectID if it has not committed yet. It
// reports whether a task was cancelled.
func (o *Orchestrator) Cancel(projectID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.flights[projectID]
	if !ok || f.committed {
		return false
	}
	f.cancel()
	return true
}

// Close cancels every task that has not committed and waits for all of them to
// report.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.stop()
	o.wg.Wait()
}

// commit marks f as past the point of no return and claims dest for it. It fails when
// f was cancelled or dest belongs to another project.
func (o *Orchestrator) commit(ctx context.Context, f *flight, dest string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	owner, claimed := o.claims[dest]
	if !claimed {
		for _, e := range o.cache.List() {
			if e.Path == dest && e.ProjectID != f.task.ProjectID {
				owner, claimed = e.ProjectID, true
				break
			}
		}
	}
	if claimed && owner != f.task.ProjectID {
		return &PathConflictError{ProjectID: f.task.ProjectID, Path: dest, Owner: owner}
	}
	f.committed = true
	f.dest = dest
	o.claims[dest] = f.task.ProjectID
	return nil
}
