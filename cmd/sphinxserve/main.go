package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sphinxserve/cmd/sphinxserve/commands"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	cli := commands.CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("sphinxserve"),
		kong.Description("Watch a documentation source tree, rebuild it with an external renderer and serve the result with live reload."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run(&commands.Global{CLI: &cli}))
}
