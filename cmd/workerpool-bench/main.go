// Command workerpool-bench exercises the three workerpool pool variants
// with a configurable synthetic task and reports completion time and
// overflow counts. It is a demo/benchmark driver, not part of the
// library's public API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noisefs-labs/workerpool/pkg/workerpool"
	"github.com/noisefs-labs/workerpool/pkg/wplog"
)

func main() {
	var (
		kind       = flag.String("kind", "steady", "pool variant: steady, balanced, or dynamic")
		workers    = flag.Int("workers", 0, "worker count (0 picks GOMAXPROCS for steady/balanced, or is the initial count for dynamic)")
		tasks      = flag.Int("tasks", 100000, "number of tasks to submit")
		capacity   = flag.Int("capacity", 0, "total task capacity, 0 for unbounded (steady/balanced only)")
		steal      = flag.Int("steal", 0, "enable stealing with this budget, 0 leaves it disabled (steady/balanced only)")
		workNanos  = flag.Int("work-ns", 0, "simulated busy-work duration per task in nanoseconds")
		verbose    = flag.Bool("verbose", false, "log pool diagnostics to stderr")
		help       = flag.Bool("help", false, "show usage")
	)
	flag.Parse()

	if *help {
		fmt.Println("workerpool-bench: drive a workerpool pool variant with synthetic tasks")
		flag.PrintDefaults()
		return
	}

	logger := wplog.Discard()
	if *verbose {
		logger = wplog.New(wplog.Config{Level: wplog.InfoLevel, Format: wplog.TextFormat, Output: os.Stderr})
	}

	work := func() error {
		if *workNanos > 0 {
			deadline := time.Now().Add(time.Duration(*workNanos))
			for time.Now().Before(deadline) {
			}
		}
		return nil
	}

	var run func(n int) (completed int64, overflowed int64, elapsed time.Duration)

	switch *kind {
	case "steady":
		run = func(n int) (int64, int64, time.Duration) {
			p, err := workerpool.NewSteadyPool(*workers,
				workerpool.WithSteadyCapacity(*capacity),
				workerpool.WithSteadyLogger(logger))
			if err != nil {
				log.Fatalf("construct steady pool: %v", err)
			}
			defer p.Close()
			if *steal > 0 {
				if err := p.EnableSteal(*steal); err != nil {
					log.Fatalf("enable steal: %v", err)
				}
			}
			return submitAndWait(func(fn func() error) error { return p.Submit(fn) }, p.WaitForTasks, n, work)
		}
	case "balanced":
		run = func(n int) (int64, int64, time.Duration) {
			p, err := workerpool.NewBalancedPool(*workers,
				workerpool.WithBalancedCapacity(*capacity),
				workerpool.WithBalancedLogger(logger))
			if err != nil {
				log.Fatalf("construct balanced pool: %v", err)
			}
			defer p.Close()
			if *steal > 0 {
				if err := p.EnableSteal(*steal); err != nil {
					log.Fatalf("enable steal: %v", err)
				}
			}
			return submitAndWait(func(fn func() error) error { return p.Submit(fn) }, p.WaitForTasks, n, work)
		}
	case "dynamic":
		run = func(n int) (int64, int64, time.Duration) {
			p, err := workerpool.NewDynamicPool(*workers, workerpool.WithDynamicLogger(logger))
			if err != nil {
				log.Fatalf("construct dynamic pool: %v", err)
			}
			defer p.Close()
			completed, overflowed, elapsed := submitAndWait(func(fn func() error) error { return p.Submit(fn) }, p.WaitForTasks, n, work)
			stats := p.Stats()
			fmt.Printf("final stats: running=%d expected=%d queue=%d\n", stats.Running, stats.Expected, stats.QueueLength)
			return completed, overflowed, elapsed
		}
	default:
		log.Fatalf("unknown kind %q: want steady, balanced, or dynamic", *kind)
	}

	completed, overflowed, elapsed := run(*tasks)
	fmt.Printf("kind=%s tasks=%d completed=%d overflowed=%d elapsed=%s throughput=%.0f/s\n",
		*kind, *tasks, completed, overflowed, elapsed, float64(completed)/elapsed.Seconds())
}

// submitAndWait drives n submissions of work through submit, waits for
// the pool to drain via waitForTasks, and reports how many submissions
// overflowed.
func submitAndWait(submit func(func() error) error, waitForTasks func(), n int, work func() error) (completed, overflowed int64, elapsed time.Duration) {
	start := time.Now()
	for i := 0; i < n; i++ {
		err := submit(work)
		switch {
		case err == nil:
			completed++
		case err == workerpool.ErrOverflow:
			overflowed++
		default:
			log.Fatalf("submit: %v", err)
		}
	}
	waitForTasks()
	elapsed = time.Since(start)
	return completed, overflowed, elapsed
}
