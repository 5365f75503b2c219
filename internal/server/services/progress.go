package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

const defaultObserverTimeout = 5 * time.Second

// progressDispatcher hands snapshots to an observer on its own goroutine.
// Publish never blocks: when the observer lags, intermediate snapshots are
// dropped. Close delivers the final snapshot and waits until the observer has
// seen it, for at most timeout.
type progressDispatcher struct {
	ch      chan models.MigrationProgress
	done    chan struct{}
	timeout time.Duration
}

func newProgressDispatcher(observer func(models.MigrationProgress), timeout time.Duration) *progressDispatcher {
	if observer == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultObserverTimeout
	}
	d := &progressDispatcher{
		ch:      make(chan models.MigrationProgress, 16),
		done:    make(chan struct{}),
		timeout: timeout,
	}
	go func() {
		defer close(d.done)
		for p := range d.ch {
			observer(p)
		}
	}()
	return d
}

func (d *progressDispatcher) Publish(p models.MigrationProgress) {
	if d == nil {
		return
	}
	select {
	case d.ch <- p:
	default:
	}
}

// Close reports false when the observer did not take the final snapshot in
// time. The observer goroutine exits once it returns.
func (d *progressDispatcher) Close(final models.MigrationProgress) bool {
	if d == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	select {
	case d.ch <- final:
	case <-ctx.Done():
		close(d.ch)
		return false
	}
	close(d.ch)
	select {
	case <-d.done:
		return true
	case <-ctx.Done():
		return false
	}
}
