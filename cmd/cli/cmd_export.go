package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/casatester/casatester/pkg/cli"
	"github.com/casatester/casatester/pkg/finding"
	"github.com/casatester/casatester/pkg/history"
	"github.com/casatester/casatester/pkg/report"
)

func runExport(ctx context.Context, s *streams, args []string) int {
	var common commonFlags
	fs := newFlagSet("export", s)
	common.register(fs)
	rawID := fs.String("id", "", "Run id (default: most recent run)")
	format := fs.String("format", report.FormatPDF, "Report format: json, text, markdown, pdf")
	output := fs.String("o", "", "Output file (default <id>.<ext>; - for stdout)")
	if _, err := parseFlags(fs, args); err != nil {
		return usageCode(err)
	}

	var id history.RunID
	if *rawID != "" {
		parsed, err := history.ParseID(*rawID)
		if err != nil {
			fmt.Fprintf(s.err, "error: %v\n", err)
			return cli.ExitUsage
		}
		id = parsed
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

	var run *finding.Run
	if id == "" {
		id, run, err = history.Latest(ctx, store)
	} else {
		run, err = store.Get(ctx, id)
	}
	switch {
	case errors.Is(err, history.ErrNotFound):
		if id == "" {
			return e.fail(cli.ExitUsage, "no saved runs to export")
		}
		return e.fail(cli.ExitUsage, "no saved run %s", id)
	case err != nil:
		return e.fail(cli.ExitInternal, "%v", err)
	}

	exp, err := report.New(*format, report.Options{
		Title:  e.cfg.Report.Title,
		Author: e.cfg.Report.Author,
		RunID:  id.String(),
	})
	if err != nil {
		return e.fail(cli.ExitUsage, "%v", err)
	}

	path := *output
	if path == "" {
		path = id.String() + "." + exp.Extension()
	}
	if path == "-" {
		err = exp.Export(e.out, run)
	} else {
		err = writeReport(path, exp, run)
	}
	if err != nil {
		return e.fail(cli.ExitInternal, "export: %v", err)
	}
	if path != "-" {
		fmt.Fprintf(e.err, "Exported %s to %s\n", id, path)
	}
	return cli.ExitOK
}
