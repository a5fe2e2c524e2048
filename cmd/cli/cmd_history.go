package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/casatester/casatester/pkg/cli"
	"github.com/casatester/casatester/pkg/history"
	"github.com/casatester/casatester/pkg/ui"
)

func runHistory(ctx context.Context, s *streams, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(s.err, "Usage: casatester history list [-n 20] | show ID | clear [-y]")
		return cli.ExitUsage
	}
	switch args[0] {
	case "list", "ls":
		return historyList(ctx, s, args[1:])
	case "show":
		return historyShow(ctx, s, args[1:])
	case "clear":
		return historyClear(ctx, s, args[1:])
	default:
		fmt.Fprintf(s.err, "unknown history command %q (want list, show or clear)\n", args[0])
		return cli.ExitUsage
	}
}

func historyList(ctx context.Context, s *streams, args []string) int {
	var common commonFlags
	fs := newFlagSet("history list", s)
	common.register(fs)
	limit := fs.Int("n", 20, "Number of runs to show (0 = all)")
	if _, err := parseFlags(fs, args); err != nil {
		return usageCode(err)
	}
	if *limit < 0 {
		fmt.Fprintln(s.err, "error: -n must not be negative")
		return cli.ExitUsage
	}

	e, err := common.setup(s)
	if err != nil {
		fmt.Fprintf(s.err, "error: %v\n", err)
		return cli.ExitInternal
	}
	store, err := e.openHistory(ctx)
	if err != nil {
		return e.fail(cli.ExitInternal, "%v", err)
	}
	defer store.Close()

	entries, err := store.List(ctx, *limit)
	if err != nil {
		return e.fail(cli.ExitInternal, "%v", err)
	}
	ui.PrintHistory(e.out, entries)
	return cli.ExitOK
}

func historyShow(ctx context.Context, s *streams, args []string) int {
	var common commonFlags
	fs := newFlagSet("history show", s)
	common.register(fs)
	if _, err := parseFlags(fs, args); err != nil {
		return usageCode(err)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(s.err, "Usage: casatester history show ID")
		return cli.ExitUsage
	}
	id, err := history.ParseID(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(s.err, "error: %v\n", err)
		return cli.ExitUsage
	}

	e, err := common.setup(s)
	if err != nil {
		fmt.Fprintf(s.err, "error: %v\n", err)
		return cli.ExitInternal
	}
	store, err := e.openHistory(ctx)
	if err != nil {
		return e.fail(cli.ExitInternal, "%v", err)
	}
	defer store.Close()

	run, err := store.Get(ctx, id)
	switch {
	case errors.Is(err, history.ErrNotFound):
		return e.fail(cli.ExitUsage, "no saved run %s", id)
	case err != nil:
		return e.fail(cli.ExitInternal, "%v", err)
	}
	ui.PrintRun(e.out, run)
	return cli.ExitOK
}

func historyClear(ctx context.Context, s *streams, args []string) int {
	var common commonFlags
	fs := newFlagSet("history clear", s)
	common.register(fs)
	yes := fs.Bool("y", false, "Do not ask for confirmation")
	if _, err := parseFlags(fs, args); err != nil {
		return usageCode(err)
	}

	e, err := common.setup(s)
	if err != nil {
		fmt.Fprintf(s.err, "error: %v\n", err)
		return cli.ExitInternal
	}
	if !*yes && !confirm(s, "Delete every saved run?") {
		fmt.Fprintln(s.err, "Aborted.")
		return cli.ExitOK
	}

	store, err := e.openHistory(ctx)
	if err != nil {
		return e.fail(cli.ExitInternal, "%v", err)
	}
	defer store.Close()

	if err := store.Clear(ctx); err != nil {
		return e.fail(cli.ExitInternal, "%v", err)
	}
	fmt.Fprintln(e.out, "History cleared.")
	return cli.ExitOK
}

// confirm asks a yes/no question on stderr and reads the answer from stdin.
func confirm(s *streams, question string) bool {
	fmt.Fprintf(s.err, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(s.in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
