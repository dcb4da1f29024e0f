package main

import "gopkg.in/urfave/cli.v1"

var (
	StoreFlag = cli.StringFlag{
		Name:  "store",
		Usage: "backing kv store: memory|redis",
		Value: "memory",
	}
	RedisEndpointFlag = cli.StringFlag{
		Name:  "redis-endpoint",
		Usage: "redis host:port",
		Value: "localhost:6379",
	}
	RedisDBFlag = cli.IntFlag{
		Name:  "redis-db",
		Usage: "redis logical database index",
	}
	LogLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "debug|info|warn|error",
		Value: "info",
	}

	SenderFlag = cli.StringFlag{
		Name:  "sender",
		Usage: "signer of the dispatch",
	}
	ContractFlag = cli.StringFlag{
		Name:  "contract",
		Usage: "contract name to call",
	}
	FunctionFlag = cli.StringFlag{
		Name:  "function",
		Usage: "exported function to call",
	}
	ArgFlag = cli.StringSliceFlag{
		Name:  "arg",
		Usage: "positional argument, repeatable, in call order",
	}
	KwargFlag = cli.StringSliceFlag{
		Name:  "kwarg",
		Usage: "name=value keyword argument, repeatable",
	}
	StampsFlag = cli.Uint64Flag{
		Name:  "stamps",
		Usage: "stamp budget for metering",
		Value: 1000000,
	}
	NoMeteringFlag = cli.BoolFlag{
		Name:  "no-metering",
		Usage: "disable stamp metering for this dispatch",
	}
	NoAutoCommitFlag = cli.BoolFlag{
		Name:  "no-autocommit",
		Usage: "do not commit state changes on success",
	}

	CodeFileFlag = cli.StringFlag{
		Name:  "codefile",
		Usage: "file containing contract source; '-' reads stdin",
	}
	NameFlag = cli.StringFlag{
		Name:  "name",
		Usage: "name to submit the contract under",
	}
	AuthorFlag = cli.StringFlag{
		Name:  "author",
		Usage: "author recorded as the submitting signer",
	}
	OverwriteFlag = cli.BoolFlag{
		Name:  "overwrite",
		Usage: "allow overwriting an existing contract",
	}
)
