package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <from> <to> <amount>",
	Short: "发送交易 (预构建 -> 确认 -> 签名广播)",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		from, to, amount := args[0], args[1], args[2]
		ctx := context.Background()

		// 1. 预构建
		unsigned, err := client().PrepareTransaction(ctx, from, to, amount)
		if err != nil {
			fmt.Printf("交易预构建失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("待签名交易:")
		fmt.Printf("  From:     %s\n", from)
		fmt.Printf("  To:       %s\n", unsigned.To)
		fmt.Printf("  Amount:   %s ETH\n", amount)
		fmt.Printf("  Gas:      %s @ %s\n", unsigned.Gas, unsigned.GasPrice)
		fmt.Printf("  Nonce:    %s\n", unsigned.Nonce)

		// 2. 人工确认
		fmt.Print("确认发送? (y/N): ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("已取消")
			return
		}

		// 3. 签名并广播
		password := readPassword("钱包密码: ")
		result, err := client().SignAndBroadcast(ctx, from, password, unsigned)
		if err != nil {
			fmt.Printf("广播失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("✅ 交易已广播")
		fmt.Printf("TxHash:      %s\n", result.TxHash)
		fmt.Printf("BlockNumber: %d\n", result.BlockNumber)
	},
}
