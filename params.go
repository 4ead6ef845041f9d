package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cserve-project/cserve-test-harness/data"
	"github.com/cserve-project/cserve-test-harness/framework/ldtest"
)

const defaultProfile = "testserver"

type commandParams struct {
	cserver        string
	handlerDir     string
	profile        string
	workDir        string
	logFile        string
	filters        ldtest.RegexFilters
	skipFile       string
	recordFailures string
	debug          bool
	debugAll       bool
	jUnitFile      string
	quiet          bool
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&c.cserver, "cserver", "", "path of the server executable")
	fs.StringVar(&c.handlerDir, "handlerdir", "", "directory of the server's handler plugins")
	fs.StringVar(&c.profile, "profile", defaultProfile,
		fmt.Sprintf("server profile: one of %s, or the path of a profile file", strings.Join(data.ProfileNames(), ", ")))
	fs.StringVar(&c.workDir, "workdir", "", "working directory of the server (default: current directory)")
	fs.StringVar(&c.logFile, "logfile", "", "where to write the server output (default: cserver.log in the working directory)")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.StringVar(&c.skipFile, "skip-file", "", "file containing test names to skip, one per line")
	fs.StringVar(&c.recordFailures, "record-failures", "", "write the names of failed tests to this file")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")
	fs.StringVar(&c.jUnitFile, "junit", "", "write JUnit XML output to the specified path")
	fs.BoolVar(&c.quiet, "quiet", false, "do not echo the server output to the console")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if c.cserver == "" || c.handlerDir == "" {
		fmt.Fprintln(os.Stderr, "-cserver and -handlerdir are required")
		fs.Usage()
		return false
	}
	return true
}
