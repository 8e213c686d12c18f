package pool

import (
	"context"
	"runtime"
	"sync"
)

// Outcome is the per-task result of a pool run. Index refers back to the
// input slice.
type Outcome[O any] struct {
	Index int
	Value O
	Err   error
}

// Run fans inputs out over a bounded worker group and gathers one outcome
// per input, in input order. Errors are captured per task, never shared;
// a cancelled context stops workers from picking up further tasks and
// marks the remaining outcomes with ctx.Err().
func Run[I, O any](ctx context.Context, workers int, inputs []I, fn func(ctx context.Context, in I) (O, error)) []Outcome[O] {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}

	outcomes := make([]Outcome[O], len(inputs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					outcomes[i] = Outcome[O]{Index: i, Err: err}
					continue
				}
				v, err := fn(ctx, inputs[i])
				outcomes[i] = Outcome[O]{Index: i, Value: v, Err: err}
			}
		}()
	}

	for i := range inputs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}
