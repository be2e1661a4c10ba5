package async

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes tasks concurrently, at most limit at a time (no
// limit when limit <= 0), and waits for all of them. The first failure
// cancels the context passed to the remaining tasks; tasks that have not
// started yet are skipped. The first error is returned.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "config.json", Func: fetchConfig},
//	    {Name: "model.safetensors", Func: fetchWeights},
//	}
//	if err := RunParallel(ctx, tasks, 8); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task, limit int) error {
	if len(tasks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, task := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("%s: %w", task.Name, err)
			}
			if err := task.Func(gctx); err != nil {
				return fmt.Errorf("%s: %w", task.Name, err)
			}
			return nil
		})
	}

	return g.Wait()
}
