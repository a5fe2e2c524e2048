// Command casatester runs web security assessments against a target URL,
// keeps a history of runs and exports reports.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/casatester/casatester/pkg/cli"
	"github.com/casatester/casatester/pkg/duration"
	"github.com/casatester/casatester/pkg/ui"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return cli.ExitUsage
	}

	ctx, cancel := cli.SignalContext(context.Background(), duration.Shutdown, stderr)
	defer cancel()

	s := &streams{in: stdin, out: stdout, err: stderr}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run", "assess":
		return runAssessment(ctx, s, rest)
	case "history":
		return runHistory(ctx, s, rest)
	case "export":
		return runExport(ctx, s, rest)
	case "probes":
		return runProbes(ctx, s, rest)
	case "mcp":
		return runMCP(ctx, s, rest)
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, ui.VersionString())
		return cli.ExitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return cli.ExitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		printUsage(stderr)
		return cli.ExitUsage
	}
}

// streams are the process's standard files, replaceable in tests.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func printUsage(w io.Writer) {
	ui.PrintBanner(w)
	fmt.Fprint(w, `Usage: casatester <command> [flags]

Commands:
  run -u URL            Assess a target and save the run
  history list [-n 20]  List saved runs, newest first
  history show ID       Show one saved run
  history clear [-y]    Delete every saved run
  export [-id ID]       Export a saved run (default: most recent)
  probes                List registered probes
  mcp [-http addr]      Serve the Model Context Protocol (stdio by default)
  version               Print version information

Exit codes for run:
  0  every probe passed
  1  at least one probe failed
  2  usage error or invalid target
  3  probes errored but none failed
  4  configuration, storage or export failure

Run 'casatester <command> -h' for command flags.
`)
}
