// Package resource bounds the background work a registry performs.
//
//   - Builds: a weighted semaphore caps how many index builds run at once
//   - IO: a token bucket throttles index blob and log compaction writes
//
// All methods accept a nil *Controller and become no-ops.
//
//	rc := resource.NewController(resource.Config{MaxConcurrentBuilds: 2})
//	if err := rc.AcquireBuild(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseBuild()
package resource
