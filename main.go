package main

import (
	"os"

	"github.com/sadopc/alertlog/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
