package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/urfave/cli.v1"

	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/encoding"
	"github.com/quailmother/contracting/pkg/loader"
	"github.com/quailmother/contracting/pkg/sandbox"
)

// runCommand is the external trigger for pkg/sandbox.Execute end to end,
// in the spirit of the teacher's `cvm run` subcommand.
var runCommand = cli.Command{
	Name:      "run",
	Usage:     "dispatch one contract function call through the executor",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		SenderFlag, ContractFlag, FunctionFlag, ArgFlag, KwargFlag,
		StampsFlag, NoMeteringFlag, NoAutoCommitFlag,
	},
	Action: runAction,
}

func runAction(c *cli.Context) error {
	store, cfg, err := openStore(c)
	if err != nil {
		return err
	}

	sender := c.String(SenderFlag.Name)
	contract := c.String(ContractFlag.Name)
	function := c.String(FunctionFlag.Name)
	if sender == "" || contract == "" || function == "" {
		return fmt.Errorf("run requires --sender, --contract, and --function")
	}

	args, err := parseArgs(c.StringSlice(ArgFlag.Name), cfg)
	if err != nil {
		return err
	}
	kwargs, err := parseKwargs(c.StringSlice(KwargFlag.Name), cfg)
	if err != nil {
		return err
	}

	ld := loader.New(store, cfg)
	ex := sandbox.New(store, ld, cfg)

	result := ex.Execute(sender, contract, function, args, kwargs,
		c.Uint64(StampsFlag.Name), !c.Bool(NoMeteringFlag.Name), !c.Bool(NoAutoCommitFlag.Name))

	out, marshalErr := json.MarshalIndent(map[string]interface{}{
		"status_code": result.StatusCode,
		"output":      fmt.Sprintf("%v", result.Output),
		"stamps_used": result.StampsUsed,
	}, "", "  ")
	if marshalErr != nil {
		return marshalErr
	}
	fmt.Println(string(out))

	return result.Error
}

func parseArgs(raw []string, cfg *params.Config) ([]interface{}, error) {
	out := make([]interface{}, 0, len(raw))
	for _, r := range raw {
		out = append(out, parseScalar(r, cfg))
	}
	return out, nil
}

func parseKwargs(raw []string, cfg *params.Config) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	for _, r := range raw {
		name, value, ok := strings.Cut(r, "=")
		if !ok {
			return nil, fmt.Errorf("malformed --kwarg %q, want name=value", r)
		}
		out[name] = parseScalar(value, cfg)
	}
	return out, nil
}

// parseScalar converts one CLI-supplied string into a canonical contract
// value: a decimal if it parses as one, the literal string otherwise.
func parseScalar(s string, cfg *params.Config) interface{} {
	if d, err := encoding.ParseDecimal(s, cfg.DecimalPrecision); err == nil {
		return d
	}
	return s
}
