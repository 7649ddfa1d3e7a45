package v2495

import "time"

type flashParams struct {
	name string

	tW   time.Duration // write status register
	tPP  time.Duration // page program
	tSE  time.Duration // 64KB sector erase
	tRES time.Duration // controller opcode turnaround
}

// Both controllers drive a Micron N25Q256A.
var n25q256 = flashParams{
	name: "Micron N25Q 256Mb",

	// [N25Q256A|Table 43: AC Characteristics and Operating Conditions]
	// tW: WRITE STATUS REGISTER cycle time
	tW: 8 * time.Millisecond,
	// tPP: PAGE PROGRAM cycle time (256 bytes)
	tPP: 5 * time.Millisecond,
	// tSE: Sector ERASE cycle time
	tSE: 3 * time.Second,

	tRES: 10 * time.Microsecond,
}

// longestWait is the slowest cycle a single busy wait can cover.
func (p flashParams) longestWait() time.Duration {
	return max(p.tW, p.tPP, p.tSE)
}

// pollRange returns the poll interval bounds for the flash: start at the
// controller turnaround and back off to a tenth of a page program.
func (p flashParams) pollRange() (lo, hi time.Duration) {
	return p.tRES, p.tPP / 10
}
