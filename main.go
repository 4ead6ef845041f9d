package main

import (
	"bufio"
	_ "embed" // this is required in order for go:embed to work
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/cserve-project/cserve-test-harness/data"
	"github.com/cserve-project/cserve-test-harness/framework"
	"github.com/cserve-project/cserve-test-harness/framework/client"
	"github.com/cserve-project/cserve-test-harness/framework/harness"
	"github.com/cserve-project/cserve-test-harness/framework/helpers"
	"github.com/cserve-project/cserve-test-harness/framework/ldtest"
	"github.com/cserve-project/cserve-test-harness/servertests"
	"github.com/cserve-project/cserve-test-harness/serviceinfo"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

//go:embed VERSION
var versionString string // comes from the VERSION file which we update for each release

func main() {
	fmt.Printf("cserve-test-harness v%s\n", strings.TrimSpace(versionString))

	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}

	results, err := run(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !results.OK() {
		os.Exit(1)
	}
}

func run(params commandParams) (*ldtest.Results, error) {
	if params.skipFile != "" {
		if err := loadSuppressions(&params); err != nil {
			return nil, err
		}
	}

	mainDebugLogger := helpers.IfElse[framework.Logger](params.debugAll,
		log.New(os.Stdout, "", log.LstdFlags), framework.NullLogger())

	workDir := params.workDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		workDir = wd
	}
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, err
	}

	profile, err := data.LoadProfileByNameOrFile(params.profile)
	if err != nil {
		return nil, err
	}
	config := profile.ProcessConfig(params.handlerDir, nil)

	supervisorOptions := []harness.SupervisorOption{
		harness.WorkDir(workDir),
		harness.TmpDirs(profile.TmpDirs...),
		harness.CleanupGlobs(profile.CleanupGlobs...),
		harness.DebugLogger(mainDebugLogger),
	}
	if params.logFile != "" {
		supervisorOptions = append(supervisorOptions, harness.LogFile(params.logFile))
	}
	if !params.quiet {
		supervisorOptions = append(supervisorOptions, harness.EchoOutput(os.Stdout))
	}
	supervisor, err := harness.NewProcessSupervisor(params.cserver, config, supervisorOptions...)
	if err != nil {
		return nil, err
	}

	stopOnSignal(supervisor)

	fmt.Printf("Starting %s with profile %q\n", params.cserver, profile.Name)
	if err := supervisor.Start(); err != nil {
		return nil, fmt.Errorf("server did not start (output written to %s): %w", supervisor.LogFile(), err)
	}

	serverInfo := serviceinfo.ServerInfo{
		Executable:    supervisor.Executable(),
		Profile:       params.profile,
		BaseURL:       config.BaseURL(),
		SecureBaseURL: config.SecureBaseURL(),
		Features:      supervisor.Features(),
		SessionID:     supervisor.SessionID(),
		PID:           supervisor.PID(),
	}
	fmt.Printf("Server is ready (PID %d, session %s)\n", serverInfo.PID, serverInfo.SessionID)
	fmt.Println()
	ldtest.PrintFilterDescription(params.filters, servicedef.AllFeatures, serverInfo.Features)

	c, err := client.FromConfig(config, "", client.DebugLogger(mainDebugLogger))
	if err != nil {
		_ = supervisor.Stop()
		return nil, err
	}

	var testLogger ldtest.TestLogger
	consoleLogger := ldtest.ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	if params.jUnitFile == "" {
		testLogger = consoleLogger
	} else {
		testLogger = &ldtest.MultiTestLogger{Loggers: []ldtest.TestLogger{
			consoleLogger,
			ldtest.NewJUnitTestLogger(params.jUnitFile, serverInfo, params.filters),
		}}
	}

	results := servertests.RunServerTestSuite(
		servertests.ServerTestContext{
			Profile:    profile,
			Config:     config,
			Client:     c,
			WorkDir:    workDir,
			Supervisor: supervisor,
		},
		params.filters,
		testLogger,
	)

	fmt.Println()
	logErr := testLogger.EndLog(results)

	fmt.Println("Stopping server")
	if err := supervisor.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stop server: %s\n", err)
	}
	for _, w := range supervisor.Cleanup() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	fmt.Printf("Server output was written to %s\n", supervisor.LogFile())

	if logErr != nil {
		return nil, fmt.Errorf("error writing log: %v", logErr)
	}

	if params.recordFailures != "" {
		f, err := os.Create(params.recordFailures)
		if err != nil {
			return nil, fmt.Errorf("cannot create suppression file: %v", err)
		}
		for _, test := range results.Failures {
			helpers.MustFprintln(f, test.TestID)
		}
		_ = f.Close()
	}

	return &results, nil
}

// stopOnSignal makes sure that the server does not outlive the harness when the run is interrupted.
func stopOnSignal(supervisor *harness.ProcessSupervisor) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-ch
		helpers.MustFprintf(os.Stderr, "Received %s, stopping server\n", sig)
		_ = supervisor.Stop()
		_ = supervisor.Cleanup()
		os.Exit(1)
	}()
}

func loadSuppressions(params *commandParams) error {
	file, err := os.Open(params.skipFile)
	if err != nil {
		return fmt.Errorf("cannot open provided suppression file: %v", err)
	}
	defer func() { _ = file.Close() }()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		// Ignore blank lines
		if strings.TrimSpace(line) == "" {
			continue
		}
		escaped := regexp.QuoteMeta(line)
		if err := params.filters.MustNotMatch.Set(escaped); err != nil {
			return fmt.Errorf("cannot parse suppression: %v", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("while processing suppression file: %v", err)
	}
	return nil
}
