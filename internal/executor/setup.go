package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harrison/templatecheck/internal/models"
)

// SetupPipeline performs the side-effecting generation of one template.
type SetupPipeline interface {
	Setup(ctx context.Context, template models.Template) error
}

// Scaffolder generates a template with the scaffolding CLI and installs its
// dependencies. The two steps run strictly in order.
type Scaffolder struct {
	Runner          CommandRunner
	FixturesDir     string
	ScaffoldCommand []string // template arguments are appended
	InstallCommand  []string // run inside the generated template
	Revision        string   // passed as --commit
	Logger          RuntimeLogger
}

// ScaffoldArgs returns the full scaffolding argv for template.
func (s *Scaffolder) ScaffoldArgs(template models.Template) []string {
	argv := append([]string{}, s.ScaffoldCommand...)
	return append(argv,
		template.Name,
		"--template", template.Name,
		"--commit", s.Revision,
		"--force-overwrite",
	)
}

// Setup implements SetupPipeline.
func (s *Scaffolder) Setup(ctx context.Context, template models.Template) error {
	start := time.Now()
	GracefulDebug(s.Logger, "Setup: scaffolding %s at %s", template.Name, s.Revision)

	if _, err := s.Runner.Run(ctx, s.FixturesDir, s.ScaffoldArgs(template)); err != nil {
		return &SetupError{Template: template.Name, Step: "scaffold", Err: err}
	}

	dir := filepath.Join(s.FixturesDir, template.Name)
	GracefulDebug(s.Logger, "Setup: installing dependencies in %s", dir)

	if _, err := s.Runner.Run(ctx, dir, s.InstallCommand); err != nil {
		return &SetupError{Template: template.Name, Step: "install", Err: err}
	}

	GracefulInfo(s.Logger, "Setup: %s ready (took %v)", template.Name, time.Since(start).Round(time.Millisecond))
	return nil
}

// SetupTask is the single-assignment outcome of one template's setup.
// The pipeline runs at most once, on the first Wait; every waiter, whether
// concurrent or arriving after completion, observes the same result.
type SetupTask struct {
	template models.Template
	base     context.Context
	run      func(context.Context) error

	state atomic.Int32
	once  sync.Once
	done  chan struct{}
	err   error // written once before done is closed
}

func newSetupTask(base context.Context, template models.Template, run func(context.Context) error) *SetupTask {
	return &SetupTask{
		template: template,
		base:     base,
		run:      run,
		done:     make(chan struct{}),
	}
}

// Template returns the template this task sets up.
func (t *SetupTask) Template() models.Template {
	return t.template
}

// State returns the current lifecycle state.
func (t *SetupTask) State() models.SetupState {
	return models.SetupState(t.state.Load())
}

// start launches the pipeline exactly once. The pipeline runs on the
// task's base context, not on any single waiter's context.
func (t *SetupTask) start() {
	t.once.Do(func() {
		t.state.Store(int32(models.SetupRunning))
		go func() {
			var err error
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("setup of %s panicked: %v", t.template.Name, r)
				}
				t.err = err
				if err != nil {
					t.state.Store(int32(models.SetupFailed))
				} else {
					t.state.Store(int32(models.SetupSucceeded))
				}
				close(t.done)
			}()
			err = t.run(t.base)
		}()
	})
}

// Wait triggers the pipeline if nobody has yet and blocks until it finishes
// or ctx is done. Cancelling ctx only stops this caller from waiting.
func (t *SetupTask) Wait(ctx context.Context) error {
	t.start()
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the outcome is final.
func (t *SetupTask) Done() <-chan struct{} {
	return t.done
}

// SetupRegistry memoizes one SetupTask per template name.
type SetupRegistry struct {
	base     context.Context
	pipeline SetupPipeline

	mu    sync.Mutex
	tasks map[string]*SetupTask
}

// NewSetupRegistry creates a registry whose pipelines run on base. Cancelling
// base aborts pipelines still in flight.
func NewSetupRegistry(base context.Context, pipeline SetupPipeline) *SetupRegistry {
	return &SetupRegistry{
		base:     base,
		pipeline: pipeline,
		tasks:    make(map[string]*SetupTask),
	}
}

// Register creates the task for template if it does not exist yet.
// Registering does not start the pipeline.
func (r *SetupRegistry) Register(template models.Template) *SetupTask {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tasks[template.Name]; ok {
		return t
	}
	t := newSetupTask(r.base, template, func(ctx context.Context) error {
		return r.pipeline.Setup(ctx, template)
	})
	r.tasks[template.Name] = t
	return t
}

// Task returns the registered task for name, or nil.
func (r *SetupRegistry) Task(name string) *SetupTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[name]
}

// Ensure waits for the setup of the named template, starting it on first use.
func (r *SetupRegistry) Ensure(ctx context.Context, name string) error {
	t := r.Task(name)
	if t == nil {
		return fmt.Errorf("template %q is not registered", name)
	}
	return t.Wait(ctx)
}

// Forget drops the task for name once all of its cases are done.
func (r *SetupRegistry) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, name)
}
