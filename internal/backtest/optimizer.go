package backtest

import (
	"context"
	"sync"

	"backtest-core/internal/bar"
	"backtest-core/internal/strategy"

	"golang.org/x/time/rate"
)

// ParamSet is one parameter combination to evaluate, paired with the
// strategy instance configured for it.
type ParamSet struct {
	Label    string
	Strategy strategy.Strategy
	Config   Config
}

// RunResult pairs a ParamSet's label with the Simulator Result it produced.
type RunResult struct {
	Label  string
	Result Result
}

// Optimizer runs independent Simulator instances concurrently, one per
// ParamSet, through a bounded worker pool — the channel-based
// queue/worker idiom generalized from the teacher's internal/order/
// queue.go (a single-consumer drain loop) to N parallel workers, since
// an optimizer sweep is embarrassingly parallel across parameter sets.
// Per spec.md §5, each worker gets its own Simulator (its own cash
// ledger, risk governor, and OrderID counter) and historical data is
// shared read-only by reference — never copied per worker.
type Optimizer struct {
	Workers int
	Limiter *rate.Limiter
}

// NewOptimizer creates an Optimizer with workers parallel workers,
// dispatch throttled to ratePerSecond new Simulator runs/second (0 or
// negative disables throttling).
func NewOptimizer(workers int, ratePerSecond float64) *Optimizer {
	if workers <= 0 {
		workers = 1
	}
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &Optimizer{Workers: workers, Limiter: limiter}
}

// Run evaluates every ParamSet in sets against series/mtf and returns one
// RunResult per set, in no guaranteed order. Cancelling ctx stops
// dispatching new work; in-flight runs still complete.
func (o *Optimizer) Run(ctx context.Context, sets []ParamSet, series []bar.AlignedSeries, mtf map[bar.Symbol]*bar.MultiTimeframeView) []RunResult {
	work := make(chan ParamSet, len(sets))
	for _, ps := range sets {
		work <- ps
	}
	close(work)

	results := make(chan RunResult, len(sets))
	var wg sync.WaitGroup

	for i := 0; i < o.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ps := range work {
				if o.Limiter != nil {
					if err := o.Limiter.Wait(ctx); err != nil {
						return
					}
				}
				if ctx.Err() != nil {
					return
				}
				sim := NewSimulator(ps.Config, ps.Strategy)
				results <- RunResult{Label: ps.Label, Result: sim.Run(series, mtf)}
			}
		}()
	}

	wg.Wait()
	close(results)

	out := make([]RunResult, 0, len(sets))
	for r := range results {
		out = append(out, r)
	}
	return out
}
