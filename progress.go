package v2495

import "sync/atomic"

// Phase is a state of a firmware operation.
type Phase string

const (
	PhaseLoading      Phase = "loading"
	PhaseUnprotecting Phase = "unprotecting"
	PhaseErasing      Phase = "erasing"
	PhaseProgramming  Phase = "programming"
	PhaseVerifying    Phase = "verifying"
	PhaseReading      Phase = "reading"
	PhaseReprotecting Phase = "reprotecting"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)

// Progress is reported after every state change and after every sector.
type Progress struct {
	Phase  Phase
	Region Region
	Done   int // units completed in this phase (sectors or pages)
	Total  int
}

// ProgressFunc receives progress updates. It runs on the calling goroutine
// and should return quickly.
type ProgressFunc func(Progress)

// Counter counts bytes moved to or from the flash. It satisfies the
// progress.Counter interface of github.com/machinebox/progress and may be
// read from another goroutine.
type Counter struct {
	n   atomic.Int64
	err atomic.Pointer[error]
}

// N returns the number of bytes counted.
func (c *Counter) N() int64 { return c.n.Load() }

// Err returns the error that ended the operation, if any.
func (c *Counter) Err() error {
	if p := c.err.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *Counter) add(n int) {
	if c != nil {
		c.n.Add(int64(n))
	}
}

func (c *Counter) reset() {
	if c != nil {
		c.n.Store(0)
		c.err.Store(nil)
	}
}

func (c *Counter) fail(err error) {
	if c != nil && err != nil {
		c.err.Store(&err)
	}
}
