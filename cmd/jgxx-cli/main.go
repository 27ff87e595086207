package main

import (
	"lnprice/cmd/jgxx-cli/commands"
	"lnprice/lib/osutil"
)

func main() {
	ctx, stop := osutil.SignalContext()
	defer stop()
	commands.ExecuteContext(ctx)
}
