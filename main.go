package main

import "github.com/netdebug/ShamirSecretSharing/cmd"

func main() {
	cmd.Execute()
}
