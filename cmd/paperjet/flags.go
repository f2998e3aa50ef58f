package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// serverFlags holds command-line flags. Zero values mean "not set"; the
// config resolver falls through to environment, file, then defaults.
type serverFlags struct {
	config        string
	engineURL     string
	port          int
	poolSize      int
	launchBrowser bool
	verbose       bool
	version       bool
}

// parseFlags parses args (excluding the program name) into serverFlags.
func parseFlags(args []string, errOut io.Writer) (*serverFlags, error) {
	flags := &serverFlags{}

	fs := flag.NewFlagSet("paperjet", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() {
		fmt.Fprintln(errOut, "usage: paperjet [flags]")
		fmt.Fprintln(errOut, "\nRenders web pages to PDF through a pool of browser sessions.")
		fmt.Fprintln(errOut, "\nFlags:")
		fs.PrintDefaults()
	}

	fs.StringVarP(&flags.config, "config", "c", "", "path to YAML config file")
	fs.StringVar(&flags.engineURL, "engine-url", "", "browser engine control URL (ws://...)")
	fs.IntVarP(&flags.port, "port", "p", 0, "HTTP listen port (default 8080)")
	fs.IntVarP(&flags.poolSize, "pool-size", "n", 0, "pooled session count (default 10)")
	fs.BoolVar(&flags.launchBrowser, "launch-browser", false, "launch a local browser when no engine URL is configured")
	fs.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	fs.BoolVar(&flags.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}
