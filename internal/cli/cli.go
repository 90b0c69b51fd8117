package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/taskmill/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("taskmill", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
taskmill - a coordinator-free batch scenario runner.

Usage:
  taskmill [options] SCENARIO

Arguments:
  SCENARIO
    Path to the scenario file (.hcl). The execution plan is persisted next
    to it as SCENARIO.todo and shared by all cooperating processes.

Options:
`)
		flagSet.PrintDefaults()
	}

	var (
		threads       = flagSet.Int("threads", 1, "Number of worker threads in this process.")
		instances     = flagSet.Int("instances", 1, "Number of cooperating processes sharing the plan (informs the parallelization budget).")
		verbosity     = flagSet.Int("verbosity", 2, "Logging verbosity, 0 (errors only) to 4 (full debug).")
		workdir       = flagSet.String("workdir", ".", "Working directory anchoring relative data source paths.")
		reset         = flagSet.String("reset", "", "Comma-separated task-id prefixes to reset ('#' = changed tasks only, '!' = all).")
		retrieveCount = flagSet.Int("retrieve_count", 1, "Number of tasks a worker claims per plan store access.")
		parseOnly     = flagSet.Bool("parse_only", false, "Validate the scenario and the plan, then exit without executing.")
	)
	flagSet.IntVar(threads, "t", 1, "Shorthand for -threads.")
	flagSet.IntVar(instances, "i", 1, "Shorthand for -instances.")
	flagSet.IntVar(verbosity, "v", 2, "Shorthand for -verbosity.")
	flagSet.StringVar(workdir, "d", ".", "Shorthand for -workdir.")
	flagSet.StringVar(reset, "r", "", "Shorthand for -reset.")
	flagSet.IntVar(retrieveCount, "c", 1, "Shorthand for -retrieve_count.")
	flagSet.BoolVar(parseOnly, "p", false, "Shorthand for -parse_only.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 1, Message: err.Error()}
	}

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, false, &ExitError{Code: 1, Message: "a scenario path is required"}
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 1, Message: fmt.Sprintf("expected one scenario path, got %d arguments", flagSet.NArg())}
	}

	var resetSpecs []string
	for _, spec := range strings.Split(*reset, ",") {
		if spec = strings.TrimSpace(spec); spec != "" {
			resetSpecs = append(resetSpecs, spec)
		}
	}

	config, err := app.NewConfig(app.Config{
		ScenarioPath:  flagSet.Arg(0),
		Workdir:       *workdir,
		Threads:       *threads,
		Instances:     *instances,
		Verbosity:     *verbosity,
		Reset:         resetSpecs,
		RetrieveCount: *retrieveCount,
		ParseOnly:     *parseOnly,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 1, Message: err.Error()}
	}
	return config, false, nil
}
