package main

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/machinebox/progress"

	"github.com/gentam/v2495"
)

// phaseLabel holds the phase last reported by the device.
type phaseLabel struct {
	p atomic.Value
}

func (l *phaseLabel) set(p v2495.Progress) {
	l.p.Store(p)
}

func (l *phaseLabel) get() (v2495.Progress, bool) {
	p, ok := l.p.Load().(v2495.Progress)
	return p, ok
}

// showProgress prints the byte progress of the running operation until the
// returned function is called.
func showProgress(d *v2495.Device, ph *phaseLabel) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		size := int64(d.Profile().Bitstream)
		for p := range progress.NewTicker(ctx, d.Counter(), size, 200*time.Millisecond) {
			label := "loading"
			if cur, ok := ph.get(); ok {
				label = fmt.Sprintf("%s %v", cur.Phase, cur.Region)
			}
			fmt.Fprintf(os.Stderr, "\r%-24s %3d %%", label, int(p.Percent()))
		}
		fmt.Fprintln(os.Stderr)
	}()

	return func() {
		cancel()
		<-done
	}
}
