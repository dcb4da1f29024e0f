package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/urfave/cli.v1"

	"github.com/quailmother/contracting/params"
	"github.com/quailmother/contracting/pkg/submission"
)

// submitCommand submits one contract through pkg/submission.SubmitContract
// (or contractstore.Driver.SetContract directly when overwriting); the
// multi-contract bag form, submission.SubmitBag, is available via repeated
// invocation or directly through the submission package.
var submitCommand = cli.Command{
	Name:   "submit",
	Usage:  "submit one contract's source to the store",
	Flags:  []cli.Flag{NameFlag, AuthorFlag, CodeFileFlag, OverwriteFlag},
	Action: submitAction,
}

func submitAction(c *cli.Context) error {
	store, _, err := openStore(c)
	if err != nil {
		return err
	}

	name := c.String(NameFlag.Name)
	author := c.String(AuthorFlag.Name)
	if name == "" || author == "" {
		return fmt.Errorf("submit requires --name and --author")
	}

	code, err := readCode(c.String(CodeFileFlag.Name))
	if err != nil {
		return err
	}

	if c.Bool(OverwriteFlag.Name) {
		if err := store.SetContract(name, code, author, params.ContractTypeUser, true); err != nil {
			return err
		}
	} else if err := submission.SubmitContract(store, name, code, author); err != nil {
		return err
	}

	fmt.Printf("submitted %s\n", name)
	return nil
}

func readCode(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("submit requires --codefile")
	}
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
