package main

import (
	"context"
	"log"
	"time"
)

// runController is the part of *pipeline.Runner the supervisor needs.
type runController interface {
	Done() <-chan struct{}
	Running() bool
	Err() error
	Stop() error
}

// supervise releases runs whose source has ended so the pipeline can be
// started again from the API. It returns when ctx is done.
func supervise(ctx context.Context, r runController, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		done := r.Done()
		if done == nil || !r.Running() {
			continue
		}
		select {
		case <-done:
		default:
			continue
		}
		if err := r.Err(); err != nil {
			log.Printf("frame source failed: %v", err)
		} else {
			log.Printf("frame source finished")
		}
		if err := r.Stop(); err != nil {
			log.Printf("failed to stop run: %v", err)
		}
	}
}
