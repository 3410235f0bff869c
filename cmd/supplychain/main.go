package main

import (
	"os"

	"github.com/flashbots/suapp-supplychain/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
