package main

import (
	"os"

	"github.com/polzovatel/easy-apply-agent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
