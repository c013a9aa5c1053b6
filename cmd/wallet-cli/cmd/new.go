package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "创建一个新钱包 (服务端生成助记词并加密保存)",
	Run: func(cmd *cobra.Command, args []string) {
		password := readPassword("设置钱包密码 (至少 8 位): ")
		confirm := readPassword("确认密码: ")
		if password != confirm {
			fmt.Println("两次输入的密码不一致！")
			os.Exit(1)
		}

		result, err := client().CreateWallet(context.Background(), password)
		if err != nil {
			fmt.Printf("创建失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("✅ 钱包创建成功")
		fmt.Printf("地址: %s\n", result.Address)
		fmt.Println()
		fmt.Println("⚠️  请抄写并妥善保管助记词，它只显示这一次:")
		fmt.Printf("    %s\n", result.Mnemonic)
	},
}
