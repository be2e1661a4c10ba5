package provisioning

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ddipass/deepseek-bedrock/internal/metrics"
)

// teardownOrder is the fixed release order. Resources not listed are
// released last, newest first.
var teardownOrder = []Resource{ResourceMonitor, ResourceDashboard, ResourceMount}

// CleanupError represents accumulated errors from cleanup operations.
type CleanupError struct {
	Errors []error
}

func (e *CleanupError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("cleanup encountered %d errors: %v", len(e.Errors), e.Errors)
}

func (e *CleanupError) Unwrap() error {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return errors.Join(e.Errors...)
}

func (e *CleanupError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

func (e *CleanupError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Coordinator releases every acquired resource of a session.
type Coordinator struct {
	Observer Observer
	Metrics  *metrics.Recorder
	// StepTimeout bounds each teardown step.
	StepTimeout time.Duration
}

// Run executes all registered teardowns and never fails. Each step runs with
// its own context derived from context.Background so a cancelled run does
// not abort teardown. Step failures and panics are logged and counted; the
// accumulated CleanupError is returned for inspection only.
func (c *Coordinator) Run(session *Session) *CleanupError {
	cleanupErrs := &CleanupError{}

	for _, td := range orderTeardowns(session.Teardowns()) {
		if !session.Acquired(td.Resource) {
			continue
		}
		if err := c.runStep(td); err != nil {
			cleanupErrs.Add(err)
			c.Metrics.CleanupStepFailed(string(td.Resource))
			if c.Observer != nil {
				c.Observer.Warn(err, fmt.Sprintf("cleanup of %s %s failed, continuing", td.Resource, td.Name))
			}
			continue
		}
		session.released(td.Resource)
		if c.Observer != nil {
			LogResourceDeleted(c.Observer, "cleanup", string(td.Resource), td.Name)
		}
	}
	session.clearTeardowns()

	if cleanupErrs.HasErrors() && c.Observer != nil {
		c.Observer.Printf("Cleanup finished with %d error(s)", len(cleanupErrs.Errors))
	}
	return cleanupErrs
}

func (c *Coordinator) runStep(td Teardown) (err error) {
	timeout := c.StepTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s %s: panic during release: %v", td.Resource, td.Name, r)
		}
	}()

	if err := td.Release(ctx); err != nil {
		return fmt.Errorf("%s %s: %w", td.Resource, td.Name, err)
	}
	return nil
}

func orderTeardowns(tds []Teardown) []Teardown {
	ordered := make([]Teardown, 0, len(tds))
	for _, r := range teardownOrder {
		for i := len(tds) - 1; i >= 0; i-- {
			if tds[i].Resource == r {
				ordered = append(ordered, tds[i])
			}
		}
	}
	for i := len(tds) - 1; i >= 0; i-- {
		if !slices.Contains(teardownOrder, tds[i].Resource) {
			ordered = append(ordered, tds[i])
		}
	}
	return ordered
}
