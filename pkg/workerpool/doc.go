// Package workerpool provides three in-process worker-pool engines that
// accept opaque units of work from one or more producer goroutines and
// execute them on a set of long-lived worker goroutines.
//
// The package offers three complementary pool variants, chosen for
// different load shapes:
//
// SteadyPool (swap):
//   - Fixed worker count, per-worker public/buffer queue pair.
//   - Producers append to a worker's public queue under a spin lock;
//     the worker swaps the whole queue into its private buffer in O(1)
//     and drains it without further locking.
//   - Best for: steady, high-volume streams of short, uniform tasks.
//
// BalancedPool (donate):
//   - Fixed worker count, single queue per worker guarded by a mutex.
//   - Idle workers donate/receive one task at a time from a busy peer.
//   - Best for: heterogeneous task durations, where a single slow task
//     should not strand a whole batch behind it on one worker.
//
// DynamicPool (shared):
//   - Resizable worker count, single shared queue with condition
//     variable wakeups; idle workers block instead of spinning.
//   - Best for: bursty or intermittent workloads, and as a cache/overflow
//     tier behind one of the fixed pools (see SetRefuseCallback).
//
// Architecture Guidelines:
//   - Use SteadyPool for uniform, short-lived, high-throughput workloads.
//   - Use BalancedPool when task durations vary and graceful degradation
//     under stragglers matters more than raw throughput.
//   - Use DynamicPool for variable load where idle CPU usage matters and
//     the worker count should track demand.
//
// None of the three variants supports task cancellation after enqueue,
// priority scheduling, fairness across submitters, distributed work, or
// persistence; see the top-level design notes in DESIGN.md for why.
package workerpool
