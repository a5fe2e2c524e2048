package main

import (
	"context"
	"fmt"

	"github.com/casatester/casatester/pkg/cli"
	"github.com/casatester/casatester/pkg/ui"
)

func runProbes(_ context.Context, s *streams, args []string) int {
	var common commonFlags
	fs := newFlagSet("probes", s)
	common.register(fs)
	scripts := fs.String("scripts", "", "Directory of *.tengo probes to include")
	set, err := parseFlags(fs, args)
	if err != nil {
		return usageCode(err)
	}

	e, err := common.setup(s)
	if err != nil {
		fmt.Fprintf(s.err, "error: %v\n", err)
		return cli.ExitInternal
	}
	if set["scripts"] {
		e.cfg.Scripts.Dir = *scripts
	}
	client, err := e.newClient()
	if err != nil {
		return e.fail(cli.ExitInternal, "network client: %v", err)
	}
	e.cfg.Runner.Probes = nil
	reg, err := e.registry(client)
	if err != nil {
		return e.fail(cli.ExitInternal, "loading probes: %v", err)
	}

	for _, d := range reg.Descriptors() {
		fmt.Fprintf(e.out, "%-20s %s\n", d.ID, ui.MutedStyle.Render(d.DisplayName))
	}
	return cli.ExitOK
}
