package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/privacybydesign/dlog/tableio"
)

var commandInspect = &cli.Command{
	Name:      "inspect",
	Usage:     "Print the metadata of a table file",
	ArgsUsage: "<tablefile>",
	Action: func(ctx *cli.Context) error {
		path, err := tablePath(ctx)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		kind, err := tableio.Kind(data)
		if err != nil {
			return err
		}
		switch kind {
		case tableio.KindBabyStep:
			table, err := tableio.UnmarshalBabyStepTable(data)
			if err != nil {
				return err
			}
			fmt.Println("Kind:      ", kind)
			fmt.Println("Group:     ", table.GroupName())
			fmt.Println("Key size:  ", table.KeySize())
			fmt.Println("Range bits:", table.RangeBits())
			fmt.Println("Baby steps:", table.M())
		case tableio.KindTruncatedBabyStep:
			table, err := tableio.UnmarshalTruncatedBabyStepTable(data)
			if err != nil {
				return err
			}
			fmt.Println("Kind:      ", kind)
			fmt.Println("Group:     ", table.GroupName())
			fmt.Println("Key size:  ", table.KeySize())
			fmt.Println("Key bytes: ", table.KeyBytes())
			fmt.Println("Range bits:", table.RangeBits())
			fmt.Println("Baby steps:", table.M())
			fmt.Println("Buckets:   ", len(table.Entries()))
		case tableio.KindDistinguishedPoint:
			table, err := tableio.UnmarshalDistinguishedPointTable(data)
			if err != nil {
				return err
			}
			fmt.Println("Kind:      ", kind)
			fmt.Println("Group:     ", table.GroupName())
			fmt.Println("Key size:  ", table.KeySize())
			fmt.Println("Range bits:", table.RangeBits())
			fmt.Println("Spacing:   ", table.Spacing())
			fmt.Println("Walk limit:", table.WalkLimit())
			fmt.Println("Step sizes:", len(table.StepSizes()))
			fmt.Println("Points:    ", table.Len())
			fmt.Println("Seed:      ", hex.EncodeToString(table.Seed()))
		}
		return nil
	},
}
