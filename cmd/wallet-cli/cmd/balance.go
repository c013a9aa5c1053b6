package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "查询钱包余额",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		balance, err := client().Balance(context.Background(), args[0])
		if err != nil {
			fmt.Printf("查询失败: %v\n", err)
			os.Exit(1)
		}

		d, err := decimal.NewFromString(balance)
		if err != nil {
			fmt.Printf("余额: %s ETH\n", balance)
			return
		}
		fmt.Printf("余额: %s ETH\n", d.StringFixed(6))
	},
}
