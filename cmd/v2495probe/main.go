// Command v2495probe inspects the flash controllers of a V2495 board.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/multierr"

	"github.com/gentam/v2495"
	"github.com/gentam/v2495/internal/cli"
	"github.com/gentam/v2495/reg"
)

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func fatalUsage(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	usage()
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	v2495probe [options] <command> [arguments]

Commands:
	id			 read the controller ID
	status			 print controller, flash and protection status
	peek ADDR		 read the register at ADDR (offset from the controller base)
	poke ADDR VALUE		 write VALUE to the register at ADDR

Options:
`)
	flag.PrintDefaults()
	os.Exit(2)
}

var (
	controller = flag.String("c", "main", "flash controller: main or user")
	debug      = flag.Bool("debug", false, "debug logging")
	link       cli.LinkFlags
)

func main() {
	link.Register(flag.CommandLine)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	c, err := v2495.ParseController(*controller)
	if err != nil {
		fatalUsage("%v", err)
	}

	switch cmd := flag.Arg(0); cmd {
	case "id":
		idCmd(c, flag.Args()[1:])
	case "status":
		statusCmd(c, flag.Args()[1:])
	case "peek":
		peekCmd(c, flag.Args()[1:])
	case "poke":
		pokeCmd(c, flag.Args()[1:])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
}

func openLink(c v2495.Controller) reg.Transport {
	t, err := link.Open(uint32(c))
	if err != nil {
		fatalf("failed to open %s link: %v", link.Kind, err)
	}
	return t
}

func closeLink(t reg.Transport) {
	if cl, ok := t.(interface{ Close() error }); ok {
		if err := cl.Close(); err != nil {
			fatalf("close: %v", err)
		}
	}
}

func parseUint32(s string) uint32 {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		fatalUsage("invalid number %q: %v", s, err)
	}
	return uint32(v)
}

func idCmd(c v2495.Controller, args []string) {
	if len(args) != 0 {
		fatalUsage("id takes no arguments")
	}
	t := openLink(c)
	defer closeLink(t)

	id, err := t.Read32(uint32(c) + reg.IDCode)
	if err != nil {
		fatalf("read ID: %v", err)
	}
	if id == reg.ID {
		fmt.Printf("%v controller ID %#08x (V2495)\n", c, id)
		return
	}
	fmt.Printf("%v controller ID %#08x, want %#08x\n", c, id, reg.ID)
}

func statusCmd(c v2495.Controller, args []string) {
	if len(args) != 0 {
		fatalUsage("status takes no arguments")
	}
	d, err := v2495.Open(openLink(c), c, v2495.WithLogger(cli.NewLogger(*debug)))
	if err != nil {
		fatalf("open: %v", err)
	}
	err = d.Session(func(d *v2495.Device) error {
		cs, err := d.Flash.ControllerStatus()
		if err != nil {
			return err
		}
		fs, err := d.Flash.FlashStatus()
		if err != nil {
			return err
		}
		code, err := d.Flash.ProtectionStatus()
		if err != nil {
			return err
		}
		fmt.Printf("controller: %v\n", c)
		fmt.Printf("status:     %v\n", cs)
		fmt.Printf("flash:      %v\n", fs)
		fmt.Printf("protection: %#02x (write-protect code %#02x)\n", code, d.Flash.ProtectCode())
		return nil
	})
	if err != nil {
		for _, e := range multierr.Errors(err) {
			fmt.Fprintln(os.Stderr, e)
		}
		os.Exit(v2495.ExitCode(err))
	}
}

func peekCmd(c v2495.Controller, args []string) {
	if len(args) != 1 {
		fatalUsage("peek needs ADDR")
	}
	addr := uint32(c) + parseUint32(args[0])
	t := openLink(c)
	defer closeLink(t)

	v, err := t.Read32(addr)
	if err != nil {
		fatalf("read %#x: %v", addr, err)
	}
	fmt.Printf("%#06x: %#08x\n", addr, v)
}

func pokeCmd(c v2495.Controller, args []string) {
	if len(args) != 2 {
		fatalUsage("poke needs ADDR VALUE")
	}
	addr := uint32(c) + parseUint32(args[0])
	val := parseUint32(args[1])
	t := openLink(c)
	defer closeLink(t)

	if err := t.Write32(addr, val); err != nil {
		fatalf("write %#x: %v", addr, err)
	}
}
