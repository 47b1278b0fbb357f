package main

import (
	"os"

	"github.com/millhouse-foods/erpsync/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
