package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/templatecheck/internal/models"
)

// fakeRunner records every invocation and answers from a callback.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	dirs  []string
	fn    func(dir string, argv []string) (string, error)
}

func (f *fakeRunner) Run(ctx context.Context, dir string, argv []string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{}, argv...))
	f.dirs = append(f.dirs, dir)
	fn := f.fn
	f.mu.Unlock()

	if fn == nil {
		return "", nil
	}
	return fn(dir, argv)
}

func (f *fakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string{}, f.calls...)
}

// countingPipeline counts Setup invocations and blocks until released.
type countingPipeline struct {
	count   atomic.Int32
	release chan struct{}
	err     error
}

func (p *countingPipeline) Setup(ctx context.Context, template models.Template) error {
	p.count.Add(1)
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.err
}

func TestScaffolder_ScaffoldArgs(t *testing.T) {
	s := &Scaffolder{
		ScaffoldCommand: []string{"node", "../../create-astro.mjs"},
		Revision:        "abc123",
	}

	got := s.ScaffoldArgs(models.Template{Name: "minimal"})
	assert.Equal(t, []string{
		"node", "../../create-astro.mjs",
		"minimal", "--template", "minimal", "--commit", "abc123", "--force-overwrite",
	}, got)

	// The configured command must not be aliased by appends.
	assert.Equal(t, []string{"node", "../../create-astro.mjs"}, s.ScaffoldCommand)
}

func TestScaffolder_Setup(t *testing.T) {
	t.Run("scaffold then install", func(t *testing.T) {
		runner := &fakeRunner{}
		s := &Scaffolder{
			Runner:          runner,
			FixturesDir:     "fixtures",
			ScaffoldCommand: []string{"create"},
			InstallCommand:  []string{"npm", "install", "--no-package-lock", "--silent"},
			Revision:        "deadbeef",
		}

		require.NoError(t, s.Setup(context.Background(), models.Template{Name: "blog"}))

		calls := runner.Calls()
		require.Len(t, calls, 2)
		assert.Equal(t, "create", calls[0][0])
		assert.Equal(t, []string{"npm", "install", "--no-package-lock", "--silent"}, calls[1])
		assert.Equal(t, "fixtures", runner.dirs[0])
		assert.Equal(t, "fixtures/blog", strings.ReplaceAll(runner.dirs[1], "\\", "/"))
	})

	t.Run("scaffold failure skips install", func(t *testing.T) {
		runner := &fakeRunner{fn: func(dir string, argv []string) (string, error) {
			return "", &CommandError{Argv: argv, ExitCode: 1, Stderr: "unknown template"}
		}}
		s := &Scaffolder{Runner: runner, ScaffoldCommand: []string{"create"}, InstallCommand: []string{"npm", "install"}}

		err := s.Setup(context.Background(), models.Template{Name: "nope"})
		require.Error(t, err)
		assert.Len(t, runner.Calls(), 1)

		var setupErr *SetupError
		require.True(t, errors.As(err, &setupErr))
		assert.Equal(t, "scaffold", setupErr.Step)
		assert.ErrorIs(t, err, ErrSetupFailed)
		assert.Contains(t, err.Error(), "unknown template")
	})

	t.Run("install failure", func(t *testing.T) {
		runner := &fakeRunner{fn: func(dir string, argv []string) (string, error) {
			if argv[0] == "npm" {
				return "", &CommandError{Argv: argv, ExitCode: 1}
			}
			return "", nil
		}}
		s := &Scaffolder{Runner: runner, ScaffoldCommand: []string{"create"}, InstallCommand: []string{"npm", "install"}}

		err := s.Setup(context.Background(), models.Template{Name: "blog"})
		var setupErr *SetupError
		require.True(t, errors.As(err, &setupErr))
		assert.Equal(t, "install", setupErr.Step)
	})
}

func TestSetupRegistry_RunsPipelineOnce(t *testing.T) {
	pipeline := &countingPipeline{}
	registry := NewSetupRegistry(context.Background(), pipeline)
	registry.Register(models.Template{Name: "minimal"})

	for i := 0; i < 3; i++ {
		require.NoError(t, registry.Ensure(context.Background(), "minimal"))
	}
	assert.Equal(t, int32(1), pipeline.count.Load())
	assert.Equal(t, models.SetupSucceeded, registry.Task("minimal").State())
}

func TestSetupRegistry_ConcurrentFirstAccess(t *testing.T) {
	pipeline := &countingPipeline{release: make(chan struct{})}
	registry := NewSetupRegistry(context.Background(), pipeline)
	registry.Register(models.Template{Name: "basics"})

	const waiters = 10
	errs := make(chan error, waiters)
	var started sync.WaitGroup
	started.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			started.Done()
			errs <- registry.Ensure(context.Background(), "basics")
		}()
	}
	started.Wait()

	require.Eventually(t, func() bool {
		return registry.Task("basics").State() == models.SetupRunning
	}, time.Second, 5*time.Millisecond)
	close(pipeline.release)

	for i := 0; i < waiters; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, int32(1), pipeline.count.Load())
}

func TestSetupRegistry_FailureReplayedToLateWaiters(t *testing.T) {
	boom := &SetupError{Template: "blog", Step: "install", Err: errors.New("exit 1")}
	pipeline := &countingPipeline{err: boom}
	registry := NewSetupRegistry(context.Background(), pipeline)
	task := registry.Register(models.Template{Name: "blog"})

	first := registry.Ensure(context.Background(), "blog")
	require.Error(t, first)
	<-task.Done()

	second := registry.Ensure(context.Background(), "blog")
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), pipeline.count.Load())
	assert.Equal(t, models.SetupFailed, task.State())
}

func TestSetupRegistry_WaiterCancellationDoesNotAbortPipeline(t *testing.T) {
	pipeline := &countingPipeline{release: make(chan struct{})}
	registry := NewSetupRegistry(context.Background(), pipeline)
	registry.Register(models.Template{Name: "portfolio"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- registry.Ensure(ctx, "portfolio") }()

	require.Eventually(t, func() bool {
		return pipeline.count.Load() == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(pipeline.release)
	require.NoError(t, registry.Ensure(context.Background(), "portfolio"))
	assert.Equal(t, int32(1), pipeline.count.Load())
}

func TestSetupRegistry_RegisterIsLazyAndIdempotent(t *testing.T) {
	pipeline := &countingPipeline{}
	registry := NewSetupRegistry(context.Background(), pipeline)

	a := registry.Register(models.Template{Name: "minimal"})
	b := registry.Register(models.Template{Name: "minimal"})
	assert.Same(t, a, b)
	assert.Equal(t, models.SetupPending, a.State())
	assert.Equal(t, int32(0), pipeline.count.Load())

	err := registry.Ensure(context.Background(), "unknown")
	assert.Error(t, err)

	registry.Forget("minimal")
	assert.Nil(t, registry.Task("minimal"))
}

type panickingPipeline struct {
	count atomic.Int32
}

func (p *panickingPipeline) Setup(ctx context.Context, template models.Template) error {
	p.count.Add(1)
	panic("installer exploded")
}

func TestSetupRegistry_PanicResolvesAsFailure(t *testing.T) {
	pipeline := &panickingPipeline{}
	registry := NewSetupRegistry(context.Background(), pipeline)
	task := registry.Register(models.Template{Name: "minimal"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := registry.Ensure(ctx, "minimal")
	require.Error(t, first)
	assert.NotErrorIs(t, first, context.DeadlineExceeded, "waiters must not hang")
	assert.Contains(t, first.Error(), "installer exploded")

	second := registry.Ensure(ctx, "minimal")
	assert.Same(t, first, second)
	assert.Equal(t, models.SetupFailed, task.State())
	assert.Equal(t, int32(1), pipeline.count.Load())
}
