package main

import "sunbyte-wallet/cmd/wallet-cli/cmd"

func main() {
	cmd.Execute()
}
