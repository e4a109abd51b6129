package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/templatecheck/internal/models"
)

// CaseRunner executes one validation phase for a template whose setup has
// already succeeded. The returned output is kept for diagnostics.
type CaseRunner interface {
	RunCase(ctx context.Context, template models.Template, port int) (string, error)
}

// Harness runs the structure, dev and build cases of every template.
// Cases of one template run in order; templates run concurrently.
type Harness struct {
	Setup          SetupPipeline
	Structure      CaseRunner
	Dev            CaseRunner
	Build          CaseRunner
	Ports          PortAllocator
	MaxConcurrency int // 0 means one slot per template
	Logger         Logger
	Runtime        RuntimeLogger
	Revision       string
	RunID          string // generated when empty
}

type caseOutcome struct {
	slot   int
	result models.CaseResult
}

// Run validates templates and returns every case result in template order,
// then case order. A failing case never stops other templates. The error is
// non-nil only when the harness itself could not run, e.g. ctx was
// cancelled before all templates were launched.
func (h *Harness) Run(ctx context.Context, templates []models.Template) (*models.RunResult, error) {
	if h == nil {
		return nil, fmt.Errorf("harness is nil")
	}
	if h.Setup == nil {
		return nil, fmt.Errorf("setup pipeline is required")
	}
	for _, tmpl := range templates {
		if err := tmpl.Validate(); err != nil {
			return nil, err
		}
	}

	runID := h.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	run := &models.RunResult{
		RunID:     runID,
		Revision:  h.Revision,
		StartedAt: time.Now(),
	}
	if len(templates) == 0 {
		h.logSummary(run)
		return run, nil
	}

	// Setup pipelines outlive individual case contexts but stop with ctx.
	registry := NewSetupRegistry(ctx, h.Setup)
	for _, tmpl := range templates {
		registry.Register(tmpl)
	}

	kinds := models.CaseKinds
	total := len(templates) * len(kinds)

	maxConcurrency := h.MaxConcurrency
	if maxConcurrency <= 0 || maxConcurrency > len(templates) {
		maxConcurrency = len(templates)
	}

	semaphore := make(chan struct{}, maxConcurrency)
	resultsCh := make(chan caseOutcome, total)

	var wg sync.WaitGroup
	var launchErr error

launch:
	for i, tmpl := range templates {
		if err := ctx.Err(); err != nil {
			launchErr = err
			break
		}
		select {
		case <-ctx.Done():
			launchErr = ctx.Err()
			break launch
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(n int, tmpl models.Template) {
			defer wg.Done()
			defer func() { <-semaphore }()
			defer registry.Forget(tmpl.Name)

			port := h.Ports.Port(n)
			if h.Logger != nil {
				h.Logger.LogTemplateStart(tmpl, port)
			}
			for k, kind := range kinds {
				resultsCh <- caseOutcome{
					slot:   n*len(kinds) + k,
					result: h.runCase(ctx, registry, tmpl, kind, port),
				}
			}
		}(i, tmpl)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	slots := make([]*models.CaseResult, total)
	completed := 0
	for outcome := range resultsCh {
		result := outcome.result
		slots[outcome.slot] = &result
		completed++

		if h.Logger != nil {
			if err := h.Logger.LogCaseResult(result); err != nil {
				GracefulWarn(h.Runtime, "Harness: failed to log %s: %v", result.Label(), err)
			}
			h.Logger.LogProgress(completed, total)
		}
	}

	for _, r := range slots {
		if r != nil {
			run.Add(*r)
		}
	}
	run.Duration = time.Since(run.StartedAt)
	h.logSummary(run)

	return run, launchErr
}

func (h *Harness) runCase(ctx context.Context, registry *SetupRegistry, tmpl models.Template, kind models.CaseKind, port int) models.CaseResult {
	result := models.CaseResult{
		Template:  tmpl,
		Kind:      kind,
		StartedAt: time.Now(),
	}

	var output string
	err := registry.Ensure(ctx, tmpl.Name)
	if err == nil {
		runner := h.runnerFor(kind)
		if runner == nil {
			err = fmt.Errorf("no runner configured for %s cases", kind)
		} else {
			output, err = runner.RunCase(ctx, tmpl, port)
		}
	}

	result.Duration = time.Since(result.StartedAt)
	result.Output = output
	if err != nil {
		result.Error = err
		result.Message = err.Error()
		GracefulDebug(h.Runtime, "Harness: %s failed: %v", result.Label(), err)
		return result
	}
	result.Passed = true
	return result
}

func (h *Harness) runnerFor(kind models.CaseKind) CaseRunner {
	switch kind {
	case models.CaseStructure:
		return h.Structure
	case models.CaseDev:
		return h.Dev
	case models.CaseBuild:
		return h.Build
	}
	return nil
}

func (h *Harness) logSummary(run *models.RunResult) {
	if h.Logger != nil {
		h.Logger.LogSummary(*run)
	}
}
