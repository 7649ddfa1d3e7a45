package v2495

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/machinebox/progress"
)

var _ progress.Counter = (*Counter)(nil)

func TestCounterTicker(t *testing.T) {
	d, _ := openSim(t, Main, nil)
	img := testImage()
	if err := d.ProgramFirmware(App1, BytesImage(img), ProgramOptions{}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var last progress.Progress
	for p := range progress.NewTicker(ctx, d.Counter(), int64(len(img)), time.Millisecond) {
		last = p
	}
	if last.N() != int64(len(img)) || last.Percent() != 100 {
		t.Errorf("last progress = %d bytes, %v%%", last.N(), last.Percent())
	}
}

func TestCounterFail(t *testing.T) {
	var c Counter
	c.add(10)
	boom := errors.New("boom")
	c.fail(boom)
	if c.N() != 10 || !errors.Is(c.Err(), boom) {
		t.Errorf("counter = %d, %v", c.N(), c.Err())
	}
	c.reset()
	if c.N() != 0 || c.Err() != nil {
		t.Errorf("counter after reset = %d, %v", c.N(), c.Err())
	}

	var nilc *Counter
	nilc.add(1)
	nilc.fail(boom)
}
