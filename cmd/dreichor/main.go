package main

import (
	"os"

	"github.com/ceerkle/dreichor-trading/cmd/dreichor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
