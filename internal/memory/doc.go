// Package memory sizes the Go heap for containers and provides backpressure
// for import workers.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main, before significant allocations:
//
//   - GOMEMLIMIT: standard Go variable; if set it wins.
//   - MEMORY_LIMIT: container limit, raw bytes from the Kubernetes Downward
//     API or a size such as "4GiB".
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap (default 0.85).
//     Lower it when ffmpeg transcodes run alongside the daemon.
//
// # Backpressure
//
// A [Monitor] samples heap usage. Above the critical mark it pauses, and
// workers calling WaitIfPaused block until usage drops below the high
// water mark:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.WaitIfPaused(ctx); err != nil {
//	    return err
//	}
//	// decode pixels, start ffmpeg, ...
package memory
