package fetch

import (
	"context"
	"sync"
)

// Request is one entry in a batch fan-out.
type Request struct {
	Key     string
	Loader  Loader
	Options Options
}

// Result is the settled outcome of one batch request. Exactly one of Value
// and Err is meaningful.
type Result struct {
	Value []byte
	Err   error
}

// Batch drives every request concurrently and to completion, each through
// the full fetch policy (cache, timeout, retries). One request's failure
// never aborts or delays the others; the returned map holds one Result per
// request key.
func (o *Orchestrator) Batch(ctx context.Context, requests []Request) map[string]Result {
	results := make(map[string]Result, len(requests))
	if len(requests) == 0 {
		return results
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, req := range requests {
		wg.Add(1)
		go func(req Request) {
			defer wg.Done()

			value, err := o.Fetch(ctx, req.Key, req.Loader, req.Options)

			mu.Lock()
			results[req.Key] = Result{Value: value, Err: err}
			mu.Unlock()
		}(req)
	}

	wg.Wait()
	return results
}
