package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sunbyte-wallet/internal/signing"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "wallet-cli",
	Short: "SunByte 钱包命令行工具",
	Long:  `通过签名服务 HTTP 接口创建/导入钱包、查询余额、发送交易和签名消息。`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "签名服务地址")

	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(signCmd)
}

func client() *signing.Client {
	return signing.NewClient(serverURL)
}

// readPassword 不回显地读取密码
func readPassword(prompt string) string {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\n读取密码失败:", err)
		os.Exit(1)
	}
	fmt.Println()
	return string(bytePassword)
}
