package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"gridex/internal/gridex"
)

func runGrid(cmd *cobra.Command, _ []string) error {
	n, _ := cmd.Flags().GetInt("granularity")
	codec, err := gridex.NewCodec(n)
	if err != nil {
		return err
	}

	out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer out.Flush()

	if priceText, _ := cmd.Flags().GetString("price"); priceText != "" {
		d, err := decimal.NewFromString(priceText)
		if err != nil {
			return fmt.Errorf("invalid price: %w", err)
		}
		price, err := gridex.DecimalToPrice(d)
		if err != nil {
			return err
		}
		grid, err := codec.PriceToGrid(price)
		if err != nil {
			return err
		}
		lower, err := codec.GridToPrice(grid)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "grid\tlower_price\tprice")
		fmt.Fprintf(out, "%d\t%s\t%s\n", grid, gridex.PriceDecimal(lower), d)
		return nil
	}

	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")
	if to == 0 {
		to = from
	}
	if to < from {
		return fmt.Errorf("grid range end %d is before start %d", to, from)
	}

	fmt.Fprintln(out, "grid\tprice\tprice_raw")
	for grid := from; grid <= to; grid++ {
		price, err := codec.GridToPrice(grid)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\t%s\t%s\n", grid, gridex.PriceDecimal(price), price)
	}
	return nil
}
