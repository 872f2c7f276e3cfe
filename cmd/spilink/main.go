// Command spilink inspects captures and runs the SPI link, in simulation or
// on hardware.
//
// Usage:
//
//	spilink decode FILE
//	spilink loopback [-size N] [-count K] [-drop PCT] [-corrupt PCT] [-capture FILE]
//	spilink slave -config FILE
//	spilink host -config FILE [-send HEX]
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/moffa90/go-spilink/config"
)

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{"decode", "decode FILE                  print the frames of a capture", runDecode},
	{"loopback", "loopback [flags]             echo messages through a simulated link", runLoopback},
	{"slave", "slave -config FILE           run the peripheral side on an SPI port", runSlave},
	{"host", "host -config FILE [-send HEX] run the host side on an SPI port", runHost},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	for _, c := range commands {
		if c.name != os.Args[1] {
			continue
		}
		if err := c.run(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "spilink %s: %v\n", c.name, err)
			os.Exit(1)
		}
		return
	}

	usage()
	os.Exit(2)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: spilink <command> [arguments]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s\n", c.usage)
	}
}

// loadConfig reads path, or the defaults when path is empty, and builds the
// logger it describes.
func loadConfig(path string, verbose bool) (*config.File, *zap.Logger, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, nil, err
		}
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("spilink "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}
