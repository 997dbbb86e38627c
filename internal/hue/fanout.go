package hue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds in-flight light operations of one fan-out.
const DefaultConcurrency = 5

// LightTask performs the operation for one light and returns the body that
// was written (nil if none) and the bridge response.
type LightTask func(ctx context.Context, lightID int) (*StateUpdate, json.RawMessage, error)

// FanOut runs one task per light with bounded concurrency. A failing light
// never cancels its siblings; every result lands in the slot matching its
// input position.
type FanOut struct {
	concurrency int
	// unitTimeout is the deadline of one wave of concurrent tasks.
	unitTimeout time.Duration
}

// NewFanOut creates a controller. Zero values fall back to the defaults.
func NewFanOut(concurrency int, unitTimeout time.Duration) *FanOut {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if unitTimeout <= 0 {
		unitTimeout = DefaultRetryPolicy().OperationTimeout
	}
	return &FanOut{concurrency: concurrency, unitTimeout: unitTimeout}
}

// Deadline returns the overall budget for n lights: one unit per wave.
func (f *FanOut) Deadline(n int) time.Duration {
	waves := (n + f.concurrency - 1) / f.concurrency
	if waves < 1 {
		waves = 1
	}
	return time.Duration(waves) * f.unitTimeout
}

// Run executes task for every ID and joins all of them before returning.
func (f *FanOut) Run(ctx context.Context, lightIDs []int, task LightTask) *Aggregate {
	ctx, cancel := context.WithTimeout(ctx, f.Deadline(len(lightIDs)))
	defer cancel()

	outcomes := make([]Outcome, len(lightIDs))

	// Tasks never return errors to the group, so one failure cannot cancel
	// the rest; the group is only used for its concurrency limit and join.
	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for i, id := range lightIDs {
		g.Go(func() error {
			out := Outcome{LightID: id}
			if err := ctx.Err(); err != nil {
				out.Err = contextError("light "+strconv.Itoa(id), err)
				outcomes[i] = out
				return nil
			}
			sent, resp, err := task(ctx, id)
			out.Sent = sent
			out.Response = resp
			out.Err = err
			out.Success = err == nil
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	return &Aggregate{Outcomes: outcomes}
}
