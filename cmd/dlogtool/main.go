// dlogtool generates, inspects and queries precomputed tables for the
// bounded-range discrete-log solvers in the dlog package.
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/privacybydesign/dlog"
	"github.com/privacybydesign/dlog/group"
)

var app *cli.App

func init() {
	app = &cli.App{
		Name:  "dlogtool",
		Usage: "precompute and query bounded-range discrete-log tables",
		Flags: []cli.Flag{
			verboseFlag,
		},
		Before: func(ctx *cli.Context) error {
			if ctx.Bool(verboseFlag.Name) {
				dlog.Logger.SetLevel(logrus.DebugLevel)
			}
			dlog.Follower = &consoleFollower{}
			return nil
		},
		Commands: []*cli.Command{
			commandGenerate,
			commandSolve,
			commandInspect,
		},
	}
}

// Flags shared between subcommands.
var (
	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "enable debug logging",
	}
	groupFlag = &cli.StringFlag{
		Name:  "group",
		Usage: "group backend: ed25519, secp256k1 or schnorr2048",
		Value: "ed25519",
	}
	bitsFlag = &cli.UintFlag{
		Name:  "bits",
		Usage: "exponent range size in bits, between 1 and 48",
		Value: 32,
	}
	workersFlag = &cli.IntFlag{
		Name:  "workers",
		Usage: "number of generation workers, 0 for all cores",
	}
)

func backendGroup(ctx *cli.Context) (group.Group, error) {
	name := ctx.String(groupFlag.Name)
	switch name {
	case "ed25519":
		return group.NewEd25519Group(), nil
	case "secp256k1":
		return group.NewSecp256k1Group(), nil
	case "schnorr2048", "schnorr":
		return group.NewSchnorrGroup(), nil
	default:
		return nil, errors.Errorf("unknown group %q", name)
	}
}

func tablePath(ctx *cli.Context) (string, error) {
	if ctx.NArg() != 1 {
		return "", errors.New("expected exactly one table file argument")
	}
	return ctx.Args().First(), nil
}

// consoleFollower prints generation progress to stderr in 10% increments.
// Engines tick from their worker goroutines, so it locks.
type consoleFollower struct {
	mu      sync.Mutex
	total   int
	seen    int
	printed int
}

func (f *consoleFollower) StepStart(desc string, intermediates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total = intermediates
	f.seen = 0
	f.printed = 0
	fmt.Fprintf(os.Stderr, "%s: ", desc)
}

func (f *consoleFollower) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen++
	if f.total <= 0 {
		return
	}
	percent := f.seen * 100 / f.total
	for f.printed+10 <= percent {
		f.printed += 10
		fmt.Fprintf(os.Stderr, "%d%% ", f.printed)
	}
}

func (f *consoleFollower) StepDone() {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintln(os.Stderr, "done")
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
