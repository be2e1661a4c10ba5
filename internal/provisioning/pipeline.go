package provisioning

import (
	"fmt"
	"time"
)

// Stage pairs a phase with the state the session enters once it succeeds.
type Stage struct {
	State State
	Phase Phase
}

// Orchestrator runs the provisioning stages in order, then the foreground
// phase, and always finishes with the cleanup coordinator.
type Orchestrator struct {
	Stages     []Stage
	Foreground ForegroundPhase
	Cleanup    *Coordinator

	// SetupOnly stops successfully once the session reaches HaltAfter.
	SetupOnly bool
	HaltAfter State
	// RetainOnHalt lists resources kept in place after a setup-only run.
	RetainOnHalt []Resource
}

// Run executes the deployment. Cleanup runs on every return path, including
// panics in a phase, before Run returns.
func (o *Orchestrator) Run(ctx *Context) (err error) {
	start := time.Now()
	ctx.Observer.Printf("Starting deployment with %d phases...", len(o.Stages)+o.foregroundCount())

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deployment aborted: panic: %v", r)
		}
		o.shutdown(ctx)
		if err == nil {
			ctx.Observer.Printf("Deployment finished in %v", time.Since(start).Round(time.Millisecond))
		}
	}()

	total := len(o.Stages) + o.foregroundCount()
	for i, stage := range o.Stages {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("deployment interrupted before %s: %w", stage.Phase.Name(), ctxErr)
		}

		if err := runPhase(ctx, stage.Phase.Name(), i, total, func() error { return stage.Phase.Provision(ctx) }); err != nil {
			return err
		}
		if err := o.advance(ctx, stage.State); err != nil {
			return err
		}

		if o.SetupOnly && stage.State == o.HaltAfter {
			for _, r := range o.RetainOnHalt {
				ctx.Session.Retain(r)
			}
			ctx.Observer.Printf("Setup-only mode: halting after %s", stage.State)
			return nil
		}
	}

	if o.Foreground == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("deployment interrupted before %s: %w", o.Foreground.Name(), ctxErr)
	}
	if err := o.advance(ctx, StateServing); err != nil {
		return err
	}
	return runPhase(ctx, o.Foreground.Name(), total-1, total, func() error { return o.Foreground.Serve(ctx) })
}

func (o *Orchestrator) foregroundCount() int {
	if o.Foreground == nil {
		return 0
	}
	return 1
}

func (o *Orchestrator) advance(ctx *Context, next State) error {
	if err := ctx.Session.Advance(next); err != nil {
		return err
	}
	ctx.Metrics.SetState(int(next))
	ctx.Observer.Event(Event{Type: EventStateChanged, Message: next.String()})
	return nil
}

func (o *Orchestrator) shutdown(ctx *Context) {
	if ctx.Session.State() < StateShuttingDown {
		_ = o.advance(ctx, StateShuttingDown)
	}
	if o.Cleanup != nil {
		o.Cleanup.Run(ctx.Session)
	}
	_ = o.advance(ctx, StateDone)
}

// runPhase executes a single phase with timing, events and metrics.
func runPhase(ctx *Context, phase string, index, total int, fn func() error) error {
	phaseStart := time.Now()
	name := fmt.Sprintf("%s (%d/%d)", phase, index+1, total)

	ctx.Observer.Printf("[%s] starting", name)
	LogPhaseStart(ctx.Observer, phase)

	err := fn()
	ctx.Metrics.ObservePhase(phase, time.Since(phaseStart), err)
	if err != nil {
		LogPhaseFailed(ctx.Observer, phase, err)
		return fmt.Errorf("%s phase failed: %w", phase, err)
	}

	LogPhaseComplete(ctx.Observer, phase, time.Since(phaseStart))
	return nil
}

// RunPhases executes phases sequentially without session bookkeeping.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	ctx.Observer.Printf("Starting provisioning with %d phases...", len(phases))

	for i, phase := range phases {
		if err := runPhase(ctx, phase.Name(), i, len(phases), func() error { return phase.Provision(ctx) }); err != nil {
			return err
		}
	}

	ctx.Observer.Printf("Provisioning completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}
