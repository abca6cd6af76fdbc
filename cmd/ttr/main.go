package main

import (
	"os"

	"github.com/stxkxs/ttr/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
