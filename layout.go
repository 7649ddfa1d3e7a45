package v2495

import (
	"fmt"
	"strings"

	"github.com/gentam/v2495/reg"
)

// Flash geometry.
const (
	PageSize       = 256
	SectorSize     = 64 << 10 // 64KB
	PagesPerSector = SectorSize / PageSize
	WordsPerPage   = PageSize / 4
)

// Controller selects one of the two flash controllers of the module. The
// value is the controller's register base.
type Controller uint32

const (
	Main Controller = 0x8500
	User Controller = 0x8700
)

func (c Controller) String() string {
	switch c {
	case Main:
		return "main"
	case User:
		return "user"
	}
	return fmt.Sprintf("controller(%#x)", uint32(c))
}

// Region is a logical firmware slot.
type Region int

const (
	Boot Region = iota // factory image
	App1
	App2
	App3
	App4
	App5
)

var regionNames = [...]string{"boot", "app1", "app2", "app3", "app4", "app5"}

func (r Region) String() string {
	if r >= 0 && int(r) < len(regionNames) {
		return regionNames[r]
	}
	return fmt.Sprintf("region(%d)", int(r))
}

// Profile describes the flash behind one controller.
type Profile struct {
	Name        string
	Base        uint32
	Bitstream   int // image length in bytes
	Sectors     int // sectors per region
	ProtectCode uint32
	Regions     map[Region]uint32 // region start addresses
}

// Main firmware flash map:
//
//	Start     | Description | Sectors
//	----------+-------------+---------
//	0000_0000 | Factory FW  | 0 - 63
//	0080_0000 | Appl. FW    | 128 - 193
//
// User firmware flash map:
//
//	Start     | Description  | Sectors
//	----------+--------------+---------
//	0000_0000 | User Factory | 0 - 127
//	0080_0000 | User Appl. 1 | 128 - 193
//	00C2_0000 | User Appl. 2 | 194 - 259
//	0104_0000 | User Appl. 3 | 260 - 325
//	0146_0000 | User Appl. 4 | 326 - 391
//	0188_0000 | User Appl. 5 | 392 - 457
//	01CA_0000 | Free         | 458 - 511
var profiles = map[Controller]Profile{
	Main: {
		Name:        "main",
		Base:        uint32(Main),
		Bitstream:   4321299,
		Sectors:     66,
		ProtectCode: reg.ProtectSectors0to63,
		Regions: map[Region]uint32{
			Boot: 0x00000000,
			App1: 0x00800000,
		},
	},
	User: {
		Name:        "user",
		Base:        uint32(User),
		Bitstream:   4321299,
		Sectors:     66,
		ProtectCode: reg.ProtectSectors0to127,
		Regions: map[Region]uint32{
			Boot: 0x00000000,
			App1: 0x00800000,
			App2: 0x00C20000,
			App3: 0x01040000,
			App4: 0x01460000,
			App5: 0x01880000,
		},
	},
}

// Profile returns the flash profile of c.
func (c Controller) Profile() (Profile, error) {
	p, ok := profiles[c]
	if !ok {
		return Profile{}, newError(KindInvalidController, "profile", fmt.Errorf("unknown controller %v", c))
	}
	return p, nil
}

// RegionStart returns the flash start address of r.
func (p Profile) RegionStart(r Region) (uint32, error) {
	addr, ok := p.Regions[r]
	if !ok {
		return 0, newError(KindInvalidRegion, "region", fmt.Errorf("%v is not available on the %s controller", r, p.Name))
	}
	return addr, nil
}

// RegionSize returns the number of bytes covered by one region.
func (p Profile) RegionSize() int {
	return p.Sectors * SectorSize
}

// Validate checks that the profile is usable by the orchestrator.
func (p Profile) Validate() error {
	switch {
	case p.Sectors <= 0:
		return fmt.Errorf("profile %s: no sectors", p.Name)
	case p.Bitstream <= 0:
		return fmt.Errorf("profile %s: empty bitstream", p.Name)
	case p.Bitstream > p.RegionSize():
		return fmt.Errorf("profile %s: bitstream of %d bytes exceeds %d sectors", p.Name, p.Bitstream, p.Sectors)
	}
	for r, addr := range p.Regions {
		if addr%SectorSize != 0 {
			return fmt.Errorf("profile %s: %v start %#x is not sector aligned", p.Name, r, addr)
		}
	}
	return nil
}

// SectorBase truncates addr down to the start of its sector.
func SectorBase(addr uint32) uint32 {
	return addr &^ (SectorSize - 1)
}

// PageAligned reports whether addr is the start of a page.
func PageAligned(addr uint32) bool {
	return addr%PageSize == 0
}

// ParseController parses a controller name.
func ParseController(s string) (Controller, error) {
	switch strings.ToLower(s) {
	case "main":
		return Main, nil
	case "user":
		return User, nil
	}
	return 0, newError(KindInvalidController, "parse", fmt.Errorf("unknown controller %q", s))
}

// ParseRegion parses a region name. "factory" is accepted for Boot.
func ParseRegion(s string) (Region, error) {
	s = strings.ToLower(s)
	if s == "factory" {
		return Boot, nil
	}
	for i, n := range regionNames {
		if s == n {
			return Region(i), nil
		}
	}
	return 0, newError(KindInvalidRegion, "parse", fmt.Errorf("unknown region %q", s))
}
