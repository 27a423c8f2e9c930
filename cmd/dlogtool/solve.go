package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/go-errors/errors"
	"github.com/urfave/cli/v2"

	"github.com/privacybydesign/dlog"
	"github.com/privacybydesign/dlog/group"
	"github.com/privacybydesign/dlog/tableio"
)

var commandSolve = &cli.Command{
	Name:      "solve",
	Usage:     "Recover the exponent of a compressed group element",
	ArgsUsage: "<tablefile> <target-hex>",
	Flags: []cli.Flag{
		groupFlag,
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return errors.New("expected a table file and a hex-compressed target")
		}
		path, targetHex := ctx.Args().Get(0), ctx.Args().Get(1)
		g, err := backendGroup(ctx)
		if err != nil {
			return err
		}
		key, err := hex.DecodeString(targetHex)
		if err != nil {
			return errors.WrapPrefix(err, "invalid target", 0)
		}
		target, err := g.Decompress(key)
		if err != nil {
			return err
		}
		solver, err := loadSolver(g, path)
		if err != nil {
			return err
		}
		x, err := solver.Solve(target)
		if err != nil {
			return err
		}
		fmt.Println("Algorithm:", solver.AlgorithmName())
		fmt.Println("Exponent: ", x)
		return nil
	},
}

// loadSolver builds the engine matching the table kind found in the file.
// Baby-step tables get the batched engine when the group supports it.
func loadSolver(g group.Group, path string) (dlog.Solver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	kind, err := tableio.Kind(data)
	if err != nil {
		return nil, err
	}
	switch kind {
	case tableio.KindBabyStep:
		table, err := tableio.UnmarshalBabyStepTable(data)
		if err != nil {
			return nil, err
		}
		if _, ok := g.(group.Batcher); ok {
			return dlog.NewBsgsKEngineFromTable(g, table)
		}
		return dlog.NewBsgsEngineFromTable(g, table)
	case tableio.KindTruncatedBabyStep:
		table, err := tableio.UnmarshalTruncatedBabyStepTable(data)
		if err != nil {
			return nil, err
		}
		return dlog.NewTbsgsKEngineFromTable(g, table)
	case tableio.KindDistinguishedPoint:
		table, err := tableio.UnmarshalDistinguishedPointTable(data)
		if err != nil {
			return nil, err
		}
		return dlog.NewBl12EngineFromTable(g, table, 0)
	default:
		return nil, errors.Errorf("unsupported table kind %q", kind)
	}
}
