package main

import (
	"os"

	"github.com/lazypower/vaultactivity/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
