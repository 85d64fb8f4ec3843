// Package console renders the progress stream on a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"syncmonitor/progress"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// Display draws a block-height progress bar and prints errors and
// completion as separate lines.
type Display struct {
	out      io.Writer
	throttle time.Duration

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	max     uint64
	lastErr progress.ErrorKind
	synced  bool
}

// New writes to out, usually os.Stderr.
func New(out io.Writer) *Display {
	return &Display{out: out, throttle: 200 * time.Millisecond}
}

// Run renders every event from sub until ctx is done or sub is closed.
func (d *Display) Run(ctx context.Context, sub *progress.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			d.finish()
			return
		case ev, ok := <-sub.C:
			if !ok {
				d.finish()
				return
			}
			d.Handle(ev)
		}
	}
}

// Handle renders one event.
func (d *Display) Handle(ev progress.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ev.IsError() {
		d.handleError(ev.Err)
		return
	}
	if ev.Snapshot != nil {
		d.handleSnapshot(*ev.Snapshot)
	}
}

func (d *Display) handleError(kind progress.ErrorKind) {
	// one line per outage, not per tick
	if kind == d.lastErr {
		return
	}
	d.lastErr = kind
	d.clearBar()

	msg := "node API unavailable"
	if kind == progress.NoActiveConnections {
		msg = "node has no active peer connections"
	}
	color.New(color.FgRed).Fprintf(d.out, "✗ %s (%s)\n", msg, kind)
}

func (d *Display) handleSnapshot(snap progress.Snapshot) {
	d.lastErr = ""

	if snap.Highest == 0 {
		if d.bar == nil {
			color.New(color.FgYellow).Fprintf(d.out, "… waiting for peers to report a chain height (at block %s)\n",
				humanize.Comma(int64(snap.Current)))
		}
		return
	}

	if snap.Synced() {
		if !d.synced {
			d.clearBar()
			color.New(color.FgGreen, color.Bold).Fprintf(d.out, "✓ synced at block %s\n",
				humanize.Comma(int64(snap.Current)))
			d.synced = true
		}
		return
	}
	d.synced = false

	if d.bar == nil {
		d.bar = d.newBar(snap.Highest)
		d.max = snap.Highest
	} else if snap.Highest != d.max {
		d.bar.ChangeMax64(int64(snap.Highest))
		d.max = snap.Highest
	}
	d.bar.Describe(fmt.Sprintf("Syncing (%s blocks behind)", humanize.Comma(int64(snap.Remaining()))))
	_ = d.bar.Set64(int64(snap.Current))
}

func (d *Display) newBar(max uint64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(int64(max),
		progressbar.OptionSetWriter(d.out),
		progressbar.OptionSetDescription("Syncing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(d.throttle),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionUseANSICodes(true),
	)
}

func (d *Display) clearBar() {
	if d.bar == nil {
		return
	}
	_ = d.bar.Clear()
	fmt.Fprintln(d.out)
	d.bar = nil
	d.max = 0
}

func (d *Display) finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bar != nil {
		_ = d.bar.Exit()
		fmt.Fprintln(d.out)
		d.bar = nil
	}
}
