package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var signCmd = &cobra.Command{
	Use:   "sign <address> <message>",
	Short: "用钱包私钥签名一条消息 (EIP-191)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		password := readPassword("钱包密码: ")

		signature, err := client().SignMessage(context.Background(), args[0], password, args[1])
		if err != nil {
			fmt.Printf("签名失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("✅ 签名完成")
		fmt.Printf("Signature: %s\n", signature)
	},
}
