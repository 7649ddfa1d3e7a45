// Command cvupgrade programs firmware images into the flash of a V2495 board.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gentam/v2495"
	"github.com/gentam/v2495/internal/cli"
)

const (
	version = "1.1.0"
	build   = "20180719"
)

type mode int

const (
	modeUpdate mode = iota
	modeVerify
	modeErase
	modeDump
	modeProtection
)

type options struct {
	controller string
	region     string
	verify     bool
	noReverse  bool
	skipErase  bool
	timeout    time.Duration
	metrics    string
	debug      bool
	link       cli.LinkFlags

	mode  mode
	image string
	dump  string
}

func fatalUsage(fs *flag.FlagSet, format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	fs.SetOutput(os.Stderr)
	fs.Usage()
	os.Exit(int(v2495.KindUsage))
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(fs.Output(), `Usage: %s [[-h | -v] | [-f]] [options] <arguments>

Modes:
	-f	 write <image> into the region (default)
	-V	 verify the region against <image>
	-E	 erase the region
	-d out	 dump the region into out
	-P	 print the protection status

Options:
`, fs.Name())
		fs.PrintDefaults()
	}
}

func parse(args []string) *options {
	o := &options{}
	fs := flag.NewFlagSet("cvupgrade", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = usage(fs)

	var help, showVersion, update, verifyOnly, erase, protection bool
	fs.BoolVar(&help, "h", false, "print this help and exit")
	fs.BoolVar(&showVersion, "v", false, "print the version and exit")
	fs.BoolVar(&update, "f", false, "firmware update mode")
	fs.BoolVar(&verifyOnly, "V", false, "verify mode")
	fs.BoolVar(&erase, "E", false, "erase mode")
	fs.StringVar(&o.dump, "d", "", "dump mode: write the region into `file`")
	fs.BoolVar(&protection, "P", false, "print the protection status")

	fs.StringVar(&o.controller, "c", "main", "flash controller: main or user")
	fs.StringVar(&o.region, "r", "app1", "region: boot (factory), app1 .. app5")
	fs.BoolVar(&o.verify, "verify", false, "read back every page after programming it")
	fs.BoolVar(&o.noReverse, "no-reverse", false, "do not reverse the bit order of the image bytes")
	fs.BoolVar(&o.skipErase, "skip-erase", false, "program without erasing the region first")
	fs.DurationVar(&o.timeout, "timeout", 10*time.Second, "bound of a single busy wait")
	fs.StringVar(&o.metrics, "metrics", "", "write flash metrics to `file` in the prometheus text format")
	fs.BoolVar(&o.debug, "debug", false, "log every sector")
	o.link.Register(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			help = true
		} else {
			fatalUsage(fs, "%v", err)
		}
	}
	if help {
		fs.SetOutput(os.Stdout)
		fs.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("cvupgrade %s (build %s)\n", version, build)
		os.Exit(0)
	}

	n := 0
	for _, m := range []struct {
		set  bool
		mode mode
	}{
		{update, modeUpdate},
		{verifyOnly, modeVerify},
		{erase, modeErase},
		{o.dump != "", modeDump},
		{protection, modeProtection},
	} {
		if m.set {
			o.mode = m.mode
			n++
		}
	}
	if n > 1 {
		fatalUsage(fs, "only one of -f, -V, -E, -d and -P may be given")
	}

	switch o.mode {
	case modeUpdate, modeVerify:
		if fs.NArg() != 1 {
			fatalUsage(fs, "missing image file")
		}
		o.image = fs.Arg(0)
	default:
		if fs.NArg() != 0 {
			fatalUsage(fs, "unexpected arguments: %v", fs.Args())
		}
	}
	return o
}

func main() {
	o := parse(os.Args[1:])

	log := cli.NewLogger(o.debug)
	defer log.Sync()

	err := run(o, log)
	if err != nil {
		log.Error("cvupgrade failed", zap.Error(err), zap.Int("code", v2495.ExitCode(err)))
	}
	os.Exit(v2495.ExitCode(err))
}

func run(o *options, log *zap.Logger) (err error) {
	c, err := v2495.ParseController(o.controller)
	if err != nil {
		return err
	}
	r, err := v2495.ParseRegion(o.region)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := v2495.NewMetrics(registry)
	if o.metrics != "" {
		defer func() {
			if werr := prometheus.WriteToTextfile(o.metrics, registry); werr != nil {
				log.Warn("write metrics", zap.Error(werr))
			}
		}()
	}

	t, err := o.link.Open(uint32(c))
	if err != nil {
		return &v2495.Error{Kind: v2495.KindOpen, Op: "open " + o.link.Kind, Err: err}
	}

	ph := &phaseLabel{}
	d, err := v2495.Open(t, c,
		v2495.WithLogger(log),
		v2495.WithWaitTimeout(o.timeout),
		v2495.WithMetrics(metrics),
		v2495.WithProgress(ph.set),
	)
	if err != nil {
		return err
	}
	return d.Session(func(d *v2495.Device) error {
		return runMode(o, d, r, ph)
	})
}

func runMode(o *options, d *v2495.Device, r v2495.Region, ph *phaseLabel) (err error) {
	fs := afero.NewOsFs()
	switch o.mode {
	case modeProtection:
		code, err := d.Flash.ProtectionStatus()
		if err != nil {
			return err
		}
		fmt.Printf("%v controller protection: %#02x\n", d.Controller(), code)
		return nil
	case modeErase:
		return d.EraseFirmware(r)
	}

	stop := showProgress(d, ph)
	defer stop()

	switch o.mode {
	case modeVerify:
		return d.VerifyFirmware(r, v2495.FileImage{Fs: fs, Path: o.image}, o.noReverse)
	case modeDump:
		f, ferr := fs.Create(o.dump)
		if ferr != nil {
			return &v2495.Error{Kind: v2495.KindFileOpen, Op: "dump firmware", Err: ferr}
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				err = multierr.Append(err, &v2495.Error{Kind: v2495.KindFileOpen, Op: "dump firmware", Err: cerr})
			}
		}()
		return d.DumpFirmware(r, f, o.noReverse)
	}
	return d.ProgramFirmware(r, v2495.FileImage{Fs: fs, Path: o.image}, v2495.ProgramOptions{
		Verify:       o.verify,
		NoBitReverse: o.noReverse,
		SkipErase:    o.skipErase,
	})
}
