package tinybuild

import (
	"context"
	"errors"
	"sync"
)

// errBuildFailed is returned by RunAll when one or more tasks failed; the
// CLI layer maps it to a nonzero exit code (§6, "Exit code").
var errBuildFailed = errors.New("tinybuild: one or more tasks failed")

// RunAll drives the scheduler (component G): repeatedly drain the pending
// queue into a batch, run every task in the batch concurrently, and wait
// for the whole batch (a "round") before draining again, since a task's
// callback may declare more tasks mid-run. Cross-task ordering is enforced
// purely by each task blocking on its producers' futures during its
// deep-await step (§4.6) — the round/batch split here exists only to pick
// up newly-declared tasks, not to order already-declared ones.
func RunAll(ctx context.Context, app *App) error {
	for app.HasPending() {
		batch := app.DrainPending()
		var wg sync.WaitGroup
		wg.Add(len(batch))
		for _, t := range batch {
			go func(t *Task) {
				defer wg.Done()
				_ = t.Run(ctx)
			}(t)
		}
		wg.Wait()
	}
	_, _, fail, _, _ := app.Counters()
	if fail > 0 {
		return errBuildFailed
	}
	return nil
}
