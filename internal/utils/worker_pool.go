package utils

import "sync"

type CompletedTask[T any] struct {
	Result T
	Error  error
}

// RunInPool drains queue with at most maxWorkers goroutines and closes
// completed once every task has finished. queue must already be closed.
func RunInPool[In any, Out any](worker func(In) (Out, error), queue chan In, completed chan CompletedTask[Out], maxWorkers int) {
	workers := min(len(queue), maxWorkers)

	go func() {
		wg := sync.WaitGroup{}
		wg.Add(workers)

		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()

				for next := range queue {
					res, err := worker(next)
					if err != nil {
						completed <- CompletedTask[Out]{Error: err}
					} else {
						completed <- CompletedTask[Out]{Result: res}
					}
				}
			}()
		}

		wg.Wait()

		close(completed)
	}()
}
