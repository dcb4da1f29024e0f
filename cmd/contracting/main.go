// Command contracting is the reference CLI for the execution core: it
// submits contracts to a ContractDriver-backed store and dispatches metered
// calls through the Executor, in the shape of the teacher's `cvm` binary.
package main

import (
	"os"

	"gopkg.in/urfave/cli.v1"

	"github.com/quailmother/contracting/internal/clog"
)

func main() {
	maybeRunWorker()

	app := cli.NewApp()
	app.Name = "contracting"
	app.Usage = "run and submit deterministic smart contracts"
	app.Flags = []cli.Flag{StoreFlag, RedisEndpointFlag, RedisDBFlag, LogLevelFlag}
	app.Commands = []cli.Command{runCommand, submitCommand}

	if err := app.Run(os.Args); err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...interface{}) {
	clog.Logger.Error().Msgf(format, args...)
	os.Exit(1)
}
