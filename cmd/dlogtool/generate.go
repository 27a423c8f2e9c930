package main

import (
	"encoding/hex"
	"fmt"

	"github.com/go-errors/errors"
	"github.com/urfave/cli/v2"

	"github.com/privacybydesign/dlog"
	"github.com/privacybydesign/dlog/tableio"
)

var (
	keyBytesFlag = &cli.IntFlag{
		Name:  "keybytes",
		Usage: "truncated key width in bytes, 0 for the per-range default",
	}
	seedFlag = &cli.StringFlag{
		Name:  "seed",
		Usage: "hex seed for a reproducible walk table",
	}
	tableSizeFlag = &cli.Uint64Flag{
		Name:  "table-size",
		Usage: "number of distinguished points, 0 for the per-range default",
	}
)

var commandGenerate = &cli.Command{
	Name:  "generate",
	Usage: "Precompute a solver table and write it to a file",
	Subcommands: []*cli.Command{
		commandGenerateBsgs,
		commandGenerateBsgsK,
		commandGenerateTbsgsK,
		commandGenerateBl12,
	},
}

var commandGenerateBsgs = &cli.Command{
	Name:      "bsgs",
	Usage:     "Baby-step table with full compressed keys",
	ArgsUsage: "<tablefile>",
	Flags: []cli.Flag{
		groupFlag,
		bitsFlag,
		workersFlag,
	},
	Action: func(ctx *cli.Context) error {
		path, err := tablePath(ctx)
		if err != nil {
			return err
		}
		g, err := backendGroup(ctx)
		if err != nil {
			return err
		}
		table, err := dlog.GenerateBabyStepTable(g, ctx.Uint(bitsFlag.Name), ctx.Int(workersFlag.Name))
		if err != nil {
			return err
		}
		if err = tableio.SaveBabyStepTable(path, table); err != nil {
			return err
		}
		printBabyStepSummary(table, path)
		return nil
	},
}

var commandGenerateBsgsK = &cli.Command{
	Name:      "bsgsk",
	Usage:     "Baby-step table built with batched group arithmetic",
	ArgsUsage: "<tablefile>",
	Flags: []cli.Flag{
		groupFlag,
		bitsFlag,
		workersFlag,
	},
	Action: func(ctx *cli.Context) error {
		path, err := tablePath(ctx)
		if err != nil {
			return err
		}
		g, err := backendGroup(ctx)
		if err != nil {
			return err
		}
		table, err := dlog.GenerateBabyStepTableBatched(g, ctx.Uint(bitsFlag.Name), ctx.Int(workersFlag.Name))
		if err != nil {
			return err
		}
		if err = tableio.SaveBabyStepTable(path, table); err != nil {
			return err
		}
		printBabyStepSummary(table, path)
		return nil
	},
}

var commandGenerateTbsgsK = &cli.Command{
	Name:      "tbsgsk",
	Usage:     "Baby-step table with truncated keys",
	ArgsUsage: "<tablefile>",
	Flags: []cli.Flag{
		groupFlag,
		bitsFlag,
		workersFlag,
		keyBytesFlag,
	},
	Action: func(ctx *cli.Context) error {
		path, err := tablePath(ctx)
		if err != nil {
			return err
		}
		g, err := backendGroup(ctx)
		if err != nil {
			return err
		}
		bits := ctx.Uint(bitsFlag.Name)
		keyBytes := ctx.Int(keyBytesFlag.Name)
		if keyBytes == 0 {
			params, err := dlog.MakeSystemParameters(bits)
			if err != nil {
				return err
			}
			keyBytes = params.TruncatedKeyBytes
		}
		table, err := dlog.GenerateTruncatedBabyStepTable(g, bits, keyBytes, ctx.Int(workersFlag.Name))
		if err != nil {
			return err
		}
		if err = tableio.SaveTruncatedBabyStepTable(path, table); err != nil {
			return err
		}
		fmt.Printf("Wrote %d baby steps in %d buckets of %d-byte keys for %d-bit %s exponents to %s\n",
			table.M(), len(table.Entries()), table.KeyBytes(), table.RangeBits(), table.GroupName(), path)
		return nil
	},
}

var commandGenerateBl12 = &cli.Command{
	Name:      "bl12",
	Usage:     "Distinguished-point table for the random walk solver",
	ArgsUsage: "<tablefile>",
	Flags: []cli.Flag{
		groupFlag,
		bitsFlag,
		workersFlag,
		seedFlag,
		tableSizeFlag,
	},
	Action: func(ctx *cli.Context) error {
		path, err := tablePath(ctx)
		if err != nil {
			return err
		}
		g, err := backendGroup(ctx)
		if err != nil {
			return err
		}
		params, err := dlog.MakeSystemParameters(ctx.Uint(bitsFlag.Name))
		if err != nil {
			return err
		}
		cfg := params.Bl12()
		cfg.Workers = ctx.Int(workersFlag.Name)
		if size := ctx.Uint64(tableSizeFlag.Name); size != 0 {
			cfg.TableSize = size
		}
		if seedHex := ctx.String(seedFlag.Name); seedHex != "" {
			seed, err := hex.DecodeString(seedHex)
			if err != nil {
				return errors.WrapPrefix(err, "invalid seed", 0)
			}
			cfg.Seed = seed
		}
		table, err := dlog.GenerateDistinguishedPointTable(g, cfg)
		if err != nil {
			return err
		}
		if err = tableio.SaveDistinguishedPointTable(path, table); err != nil {
			return err
		}
		fmt.Printf("Wrote %d distinguished points for %d-bit %s exponents to %s\n",
			table.Len(), table.RangeBits(), table.GroupName(), path)
		fmt.Println("Seed:", hex.EncodeToString(table.Seed()))
		return nil
	},
}

func printBabyStepSummary(table *dlog.BabyStepTable, path string) {
	fmt.Printf("Wrote %d baby steps for %d-bit %s exponents to %s\n",
		table.M(), table.RangeBits(), table.GroupName(), path)
}
