package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var importFromKey bool

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "从助记词或私钥导入钱包",
	Run: func(cmd *cobra.Command, args []string) {
		reader := bufio.NewReader(os.Stdin)

		var secret string
		if importFromKey {
			secret = readPassword("输入私钥 (不回显): ")
		} else {
			fmt.Print("输入助记词: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				fmt.Println("读取失败:", err)
				os.Exit(1)
			}
			secret = strings.TrimSpace(line)
		}

		password := readPassword("设置钱包密码 (至少 8 位): ")

		var address string
		var err error
		if importFromKey {
			address, err = client().ImportPrivateKey(context.Background(), secret, password)
		} else {
			address, err = client().ImportMnemonic(context.Background(), secret, password)
		}
		if err != nil {
			fmt.Printf("导入失败: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("✅ 钱包导入成功")
		fmt.Printf("地址: %s\n", address)
	},
}

func init() {
	importCmd.Flags().BoolVar(&importFromKey, "private-key", false, "从私钥导入 (默认从助记词导入)")
}
